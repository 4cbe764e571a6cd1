package command

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
)

// ScanImageCommand: 채널의 가장 최근 이미지를 EXPRESS 우선순위로 스캔하고
// 대화형 승인 프롬프트를 띄운다.
type ScanImageCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ScanImageCommand) Name() string { return "scanimage" }

// Description 은 명령어 설명을 반환한다.
func (c *ScanImageCommand) Description() string { return "scanimage" }

// Execute 는 명령을 실행한다.
func (c *ScanImageCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	recent := c.deps.Images.Recent(cmdCtx.GuildID, cmdCtx.ChannelID, 1)
	if len(recent) == 0 {
		return c.deps.reply(ctx, cmdCtx, "No recent image found in this channel.")
	}
	event := recent[len(recent)-1]

	out, err := c.deps.Engine.Process(ctx, ocr.TierExpress, event.Bytes)
	if err != nil || out.Status != ocr.StatusOK {
		return c.deps.reply(ctx, cmdCtx,
			"Couldn't read this image. Try again or enter the results manually with addwar.")
	}

	resolve, err := c.deps.Resolver.ResolverFor(ctx, cmdCtx.GuildID)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	detected := ocr.ParseResults(out.Boxes, constants.ScoringConfig.DefaultRaceCount, resolve)
	if len(detected) == 0 {
		return c.deps.reply(ctx, cmdCtx,
			"No player rows detected. Try again or enter the results manually with addwar.")
	}

	players := make([]domain.WarPlayer, len(detected))
	for i, d := range detected {
		players[i] = domain.WarPlayer{Name: d.Name, Score: d.Score, RacesPlayed: d.RacesPlayed}
	}
	c.deps.Confirms.Put(cmdCtx.GuildID, cmdCtx.ChannelID, players, constants.ScoringConfig.DefaultRaceCount)

	return c.deps.reply(ctx, cmdCtx,
		c.deps.Formatter.DetectedPlayers(detected, constants.ScoringConfig.DefaultRaceCount))
}

// BulkScanImageCommand: 채널의 최근 이미지들을 벌크 스캔해 리뷰 세션을 만든다.
type BulkScanImageCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *BulkScanImageCommand) Name() string { return "bulkscanimage" }

// Description 은 명령어 설명을 반환한다.
func (c *BulkScanImageCommand) Description() string { return "bulkscanimage" }

// Execute 는 명령을 실행한다.
func (c *BulkScanImageCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	images := c.deps.Images.Recent(cmdCtx.GuildID, cmdCtx.ChannelID, constants.BulkConfig.MaxImagesPerScan)
	if len(images) == 0 {
		return c.deps.reply(ctx, cmdCtx, "No recent images found in this channel.")
	}

	session, err := c.deps.Bulk.CreateSession(ctx, cmdCtx.GuildID, cmdCtx.UserID, len(images), "")
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	tier := c.deps.Engine.TierFor(len(images))
	resolve, err := c.deps.Resolver.ResolverFor(ctx, cmdCtx.GuildID)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	_ = c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"Scanning %d images at %s priority...", len(images), tier))

	// 이미지들은 동시에 처리되지만 결과는 이벤트 순서대로 세션에 추가한다.
	type scanOutcome struct {
		event    *domain.ImageEvent
		detected []domain.DetectedPlayer
		errMsg   string
	}
	outcomes := make([]scanOutcome, len(images))

	workers := pool.New().WithMaxGoroutines(len(images))
	for i, event := range images {
		i, event := i, event
		workers.Go(func() {
			out, err := c.deps.Engine.Process(ctx, tier, event.Bytes)
			outcome := scanOutcome{event: event}
			switch {
			case err != nil:
				outcome.errMsg = "OCR failed: " + err.Error()
			case out.Status == ocr.StatusError:
				outcome.errMsg = "OCR failed: " + out.ErrorMsg
			case out.Status == ocr.StatusEmpty:
				outcome.errMsg = "OCR produced no text"
			default:
				detected := ocr.ParseResults(out.Boxes, constants.ScoringConfig.DefaultRaceCount, resolve)
				if len(detected) == 0 {
					outcome.errMsg = "no player rows detected"
				} else {
					outcome.detected = detected
				}
			}
			outcomes[i] = outcome
		})
	}
	workers.Wait()

	appended, failed := 0, 0
	for _, outcome := range outcomes {
		ts := outcome.event.Timestamp
		if outcome.errMsg != "" {
			if _, err := c.deps.Bulk.AppendFailure(ctx, session.Token, &domain.BulkFailure{
				ImageFilename:    outcome.event.Filename,
				ImageURL:         outcome.event.URL,
				ErrorMessage:     outcome.errMsg,
				MessageTimestamp: &ts,
			}); err == nil {
				failed++
			}
			continue
		}
		if _, err := c.deps.Bulk.AppendResult(ctx, session.Token, &domain.BulkResult{
			ImageFilename:    outcome.event.Filename,
			ImageURL:         outcome.event.URL,
			DetectedPlayers:  outcome.detected,
			RaceCount:        constants.ScoringConfig.DefaultRaceCount,
			MessageTimestamp: &ts,
		}); err == nil {
			appended++
		}
	}

	url := session.Token
	if base := c.deps.Config.Server.PublicWebURL; base != "" {
		url = fmt.Sprintf("%s/review/%s", base, session.Token)
	}
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"Bulk scan finished: %d readable, %d failed.\nReview and confirm here: %s", appended, failed, url))
}

// DebugOCRCommand: 이미지 URL을 받아 OCR 원시 출력과 파싱 결과를 보여준다.
type DebugOCRCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *DebugOCRCommand) Name() string { return "debugocr" }

// Description 은 명령어 설명을 반환한다.
func (c *DebugOCRCommand) Description() string { return "debugocr <image_url>" }

// Execute 는 명령을 실행한다.
func (c *DebugOCRCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	url := strings.TrimSpace(raw)
	if url == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	image, err := fetchImage(ctx, url)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, "Could not download the image.")
	}

	out, err := c.deps.Engine.Process(ctx, ocr.TierExpress, image)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OCR status: %s (wait %s, run %s)\n",
		out.Status, out.WaitTime.Round(time.Millisecond), out.ProcessTime.Round(time.Millisecond))
	for i, box := range out.Boxes {
		if i >= 25 {
			fmt.Fprintf(&b, "  ... and %d more boxes\n", len(out.Boxes)-i)
			break
		}
		fmt.Fprintf(&b, "  %q conf=%.2f at (%d,%d)\n", box.Text, box.Confidence, box.Box.X, box.Box.Y)
	}

	resolve, rErr := c.deps.Resolver.ResolverFor(ctx, cmdCtx.GuildID)
	if rErr == nil {
		detected := ocr.ParseResults(out.Boxes, constants.ScoringConfig.DefaultRaceCount, resolve)
		if len(detected) > 0 {
			b.WriteString("Parsed rows:\n")
			for _, d := range detected {
				fmt.Fprintf(&b, "  %s: %d (raw %q, roster=%t)\n", d.Name, d.Score, d.RawName, d.IsRosterMember)
			}
		}
	}
	return c.deps.reply(ctx, cmdCtx, strings.TrimRight(b.String(), "\n"))
}

func fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: constants.RequestTimeout.ChatSend}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
