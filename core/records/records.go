// Package records persists the results of completed scenarios and exposes
// them as terminal actions for the conversation manager.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/swingbot/core/scenario"
)

// ErrIncomplete is returned when scenario data lacks a required field.
var ErrIncomplete = errors.New("records: incomplete scenario data")

// ErrDuplicate is returned when a unique value is already taken.
var ErrDuplicate = errors.New("records: duplicate")

// Profile is a user's onboarding answers.
type Profile struct {
	UserID   int64  `db:"user_id"`
	Language string `db:"language"`
	Name     string `db:"name"`
	Location string `db:"location"`
}

// Event is an organiser's event.
type Event struct {
	ID          int64     `db:"id"`
	OrganizerID int64     `db:"organizer_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	StartsAt    time.Time `db:"starts_at"`
	Location    string    `db:"location"`
	Capacity    int       `db:"capacity"`
	// ContactEmail is NULL when the organiser skipped it.
	ContactEmail sql.NullString `db:"contact_email"`
}

// Group is a community group.
type Group struct {
	ID         int64          `db:"id"`
	OwnerID    int64          `db:"owner_id"`
	Title      string         `db:"title"`
	Visibility string         `db:"visibility"`
	InviteCode sql.NullString `db:"invite_code"`
}

// Repository stores records.
type Repository interface {
	SaveProfile(ctx context.Context, p Profile) error
	CreateEvent(ctx context.Context, e *Event) error
	CreateGroup(ctx context.Context, g *Group) error
}

func required(data scenario.Data, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// ProfileFromData maps onboarding data.
func ProfileFromData(userID int64, data scenario.Data) (Profile, error) {
	if err := required(data, "language", "name", "location"); err != nil {
		return Profile{}, err
	}
	return Profile{
		UserID:   userID,
		Language: data.String("language"),
		Name:     data.String("name"),
		Location: data.String("location"),
	}, nil
}

// EventFromData maps event_creation data. Date and time are read in loc.
func EventFromData(userID int64, data scenario.Data, loc *time.Location) (Event, error) {
	if err := required(data, "title", "date", "time", "location"); err != nil {
		return Event{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	startsAt, err := time.ParseInLocation(scenario.DateLayout+" "+scenario.ClockLayout,
		data.String("date")+" "+data.String("time"), loc)
	if err != nil {
		return Event{}, fmt.Errorf("%w: start time: %v", ErrIncomplete, err)
	}
	capacity, _ := data.Number("capacity")
	e := Event{
		OrganizerID: userID,
		Title:       data.String("title"),
		Description: data.String("description"),
		StartsAt:    startsAt,
		Location:    data.String("location"),
		Capacity:    int(capacity),
	}
	if email := data.String("contact"); email != "" {
		e.ContactEmail = sql.NullString{String: email, Valid: true}
	}
	return e, nil
}

// GroupFromData maps group_setup data.
func GroupFromData(userID int64, data scenario.Data) (Group, error) {
	if err := required(data, "title", "visibility"); err != nil {
		return Group{}, err
	}
	g := Group{
		OwnerID:    userID,
		Title:      data.String("title"),
		Visibility: data.String("visibility"),
	}
	if code := data.String("invite_code"); code != "" {
		g.InviteCode = sql.NullString{String: code, Valid: true}
	}
	return g, nil
}
