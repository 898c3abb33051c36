package commands

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/dkalashnik/telegram-session-log/pkg/interview"
	"github.com/dkalashnik/telegram-session-log/pkg/ports/botport"
	"github.com/dkalashnik/telegram-session-log/pkg/stats"
)

func (h *Handler) handleSession(ctx context.Context, msg botport.Message, _ []string) {
	req := interview.Request{UserID: msg.AuthorID, UserName: msg.AuthorName, ChatID: msg.ChatID}
	rec, err := h.interviews.Run(ctx, req)
	switch {
	case err == nil:
		log.Printf("[commands] Session of user %d completed with %d answers", msg.AuthorID, len(rec.Answers))
	case errors.Is(err, interview.ErrSessionActive), errors.Is(err, interview.ErrCancelled), errors.Is(err, interview.ErrTimedOut):
		log.Printf("[commands] Session of user %d ended: %v", msg.AuthorID, err)
	default:
		log.Printf("[commands] Session of user %d failed: %v", msg.AuthorID, err)
	}
}

func (h *Handler) handleLast(ctx context.Context, msg botport.Message, _ []string) {
	recs, err := h.records.Load(ctx)
	if err != nil {
		log.Printf("[commands] /last for user %d: %v", msg.AuthorID, err)
		h.send(ctx, msg.ChatID, msgLoadFailed)
		return
	}

	idx := -1
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].UserID == msg.AuthorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.send(ctx, msg.ChatID, msgNoRecord)
		return
	}

	last := recs[idx]
	text, err := stats.FormatRecord(last, h.questionnaire)
	if err != nil {
		log.Printf("[commands] /last for user %d: %v", msg.AuthorID, err)
		h.send(ctx, msg.ChatID, msgLoadFailed)
		return
	}
	h.send(ctx, msg.ChatID, text)

	for _, path := range stats.Attachments(last, h.questionnaire) {
		if _, err := os.Stat(path); err != nil {
			log.Printf("[commands] Attachment %s of user %d is gone: %v", path, msg.AuthorID, err)
			continue
		}
		h.sendFile(ctx, msg.ChatID, path, captionAttachment)
	}
}

func (h *Handler) handleExport(ctx context.Context, msg botport.Message, _ []string) {
	if !h.records.Exists() {
		h.send(ctx, msg.ChatID, msgNothingToSend)
		return
	}
	if h.sendFile(ctx, msg.ChatID, h.records.Path(), captionExport) {
		log.Printf("[commands] Exported %s to chat %d", h.records.Path(), msg.ChatID)
	}
}

func (h *Handler) handleStats(ctx context.Context, msg botport.Message, args []string) {
	var reports []stats.Report
	if len(args) > 0 && strings.EqualFold(args[0], "all") {
		all, err := h.reports.ComputeAll(ctx)
		if err != nil {
			log.Printf("[commands] /stats all: %v", err)
			h.send(ctx, msg.ChatID, msgStatsFailed)
			return
		}
		if len(all) == 0 {
			h.send(ctx, msg.ChatID, msgNoData)
			return
		}
		reports = all
	} else {
		report, err := h.reports.Compute(ctx, msg.AuthorID)
		if err != nil {
			log.Printf("[commands] /stats for user %d: %v", msg.AuthorID, err)
			h.send(ctx, msg.ChatID, msgStatsFailed)
			return
		}
		if report.Empty() && msg.AuthorName != "" {
			report.UserName = msg.AuthorName
		}
		reports = []stats.Report{report}
	}

	for _, report := range reports {
		h.sendReport(ctx, msg.ChatID, report)
	}
}

func (h *Handler) sendReport(ctx context.Context, chatID int64, report stats.Report) {
	text, err := stats.Summarize(report)
	if err != nil {
		log.Printf("[commands] Summary for user %d: %v", report.UserID, err)
		h.send(ctx, chatID, msgStatsFailed)
		return
	}
	h.send(ctx, chatID, text)

	if report.Empty() || h.charts == nil {
		return
	}
	path, err := h.charts.WriteFile(report.UserID, report.UserName, report.Series)
	if err != nil {
		log.Printf("[commands] Chart for user %d: %v", report.UserID, err)
		return
	}
	h.sendFile(ctx, chatID, path, report.UserName)
}

func (h *Handler) handlePing(ctx context.Context, msg botport.Message, _ []string) {
	h.send(ctx, msg.ChatID, msgPong)
}

func (h *Handler) handleHelp(ctx context.Context, msg botport.Message, _ []string) {
	h.send(ctx, msg.ChatID, msgHelp)
}
