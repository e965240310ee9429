package records

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/swingbot/core/conversation"
	"github.com/m3rciful/swingbot/core/logger"
	"github.com/m3rciful/swingbot/core/scenario"
)

// SaveProfile is the onboarding terminal action.
func SaveProfile(repo Repository) conversation.TerminalAction {
	return func(ctx context.Context, userID int64, data scenario.Data) error {
		p, err := ProfileFromData(userID, data)
		if err != nil {
			return err
		}
		start := time.Now()
		if err := repo.SaveProfile(ctx, p); err != nil {
			return err
		}
		logger.Records.LogAttrs(ctx, slog.LevelInfo, "profile saved",
			slog.String("event", "records.profile"),
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.String("lang", p.Language),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return nil
	}
}

// CreateEvent is the event_creation terminal action.
func CreateEvent(repo Repository, loc *time.Location) conversation.TerminalAction {
	return func(ctx context.Context, userID int64, data scenario.Data) error {
		e, err := EventFromData(userID, data, loc)
		if err != nil {
			return err
		}
		if err := repo.CreateEvent(ctx, &e); err != nil {
			return err
		}
		logger.Records.LogAttrs(ctx, slog.LevelInfo, "event created",
			slog.String("event", "records.event"),
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.Int64("event_id", e.ID),
			slog.Time("starts_at", e.StartsAt),
		)
		return nil
	}
}

// CreateGroup is the group_setup terminal action.
func CreateGroup(repo Repository) conversation.TerminalAction {
	return func(ctx context.Context, userID int64, data scenario.Data) error {
		g, err := GroupFromData(userID, data)
		if err != nil {
			return err
		}
		if err := repo.CreateGroup(ctx, &g); err != nil {
			return err
		}
		logger.Records.LogAttrs(ctx, slog.LevelInfo, "group created",
			slog.String("event", "records.group"),
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.Int64("group_id", g.ID),
			slog.String("visibility", g.Visibility),
		)
		return nil
	}
}

// Actions returns manager options wiring every terminal action to repo.
func Actions(repo Repository, loc *time.Location) []conversation.Option {
	return []conversation.Option{
		conversation.WithAction(scenario.Onboarding, SaveProfile(repo)),
		conversation.WithAction(scenario.EventCreation, CreateEvent(repo, loc)),
		conversation.WithAction(scenario.GroupSetup, CreateGroup(repo)),
	}
}
