package scenario

import "time"

// Skip words accepted by optional steps.
var skipWords = []string{"-", "skip"}

// Builtin returns the scenarios shipped with the bot. Callers may adjust TTLs
// before handing them to NewRegistry; each call returns fresh values.
func Builtin() []Definition {
	return []Definition{
		onboarding(),
		eventCreation(),
		groupSetup(),
		adminPanel(),
	}
}

func onboarding() Definition {
	return Definition{
		ID:       Onboarding,
		Title:    "Welcome",
		Triggers: []string{"/start"},
		TTL:      time.Hour,
		Steps: []Step{
			{
				Name:     "language",
				Prompt:   "Choose your language.",
				Choices:  []string{"en", "ru"},
				Validate: OneOf("en", "ru"),
			},
			{
				Name:     "name",
				Prompt:   "What is your name?",
				Validate: Length(2, 50),
			},
			{
				Name:     "location",
				Prompt:   "Which city do you dance in?",
				Validate: Length(2, 100),
			},
		},
	}
}

func eventCreation() Definition {
	return Definition{
		ID:               EventCreation,
		Title:            "New event",
		Triggers:         []string{"/create_event"},
		TTL:              30 * time.Minute,
		ExtendOnActivity: true,
		Interruptible:    true,
		Steps: []Step{
			{Name: "title", Prompt: "Event title?", Validate: Length(3, 100)},
			{
				Name:     "description",
				Prompt:   "Describe the event, or send - to skip.",
				Choices:  []string{"skip"},
				Validate: Optional(Length(10, 500), skipWords...),
			},
			{Name: "date", Prompt: "Date (YYYY-MM-DD)?", Validate: Date()},
			{Name: "time", Prompt: "Start time (HH:MM)?", Validate: Clock()},
			{Name: "location", Prompt: "Where does it take place?", Validate: Length(3, 200)},
			{
				Name:     "capacity",
				Prompt:   "How many participants at most? Send 0 for no limit.",
				Validate: WithReason(Number(0, 10000), "capacity must be a number from 0 to 10000"),
			},
			{
				Name:     "contact",
				Prompt:   "Contact email for participants, or send - to skip.",
				Choices:  []string{"skip"},
				Validate: Optional(Chain(Length(6, 254), Email()), skipWords...),
			},
			{
				Name:     "confirmation",
				Prompt:   "Create the event?",
				Choices:  []string{"confirm"},
				Validate: OneOf("confirm"),
			},
		},
	}
}

func groupSetup() Definition {
	return Definition{
		ID:            GroupSetup,
		Title:         "Group setup",
		Triggers:      []string{"/setup_group"},
		TTL:           30 * time.Minute,
		Interruptible: true,
		Steps: []Step{
			{Name: "title", Prompt: "Group name?", Validate: Length(3, 100)},
			{
				Name:     "visibility",
				Prompt:   "Should the group be public or private?",
				Choices:  []string{"public", "private"},
				Validate: OneOf("public", "private"),
				Rules:    []Rule{{When: `value == "public"`, Goto: "confirmation"}},
			},
			{
				Name:     "invite_code",
				Prompt:   "Pick an invite code (4-32 letters or digits).",
				Validate: Pattern(`^[A-Za-z0-9]{4,32}$`, "invite code must be 4-32 letters or digits"),
			},
			{
				Name:     "confirmation",
				Prompt:   "Save the group?",
				Choices:  []string{"confirm"},
				Validate: OneOf("confirm"),
			},
		},
	}
}

func adminPanel() Definition {
	return Definition{
		ID:               AdminPanel,
		Title:            "Admin panel",
		Triggers:         []string{"/admin"},
		TTL:              time.Hour,
		ExtendOnActivity: true,
		Interruptible:    true,
		Steps: []Step{
			{
				Name:     "menu",
				Prompt:   "Admin panel. Pick a section.",
				Choices:  []string{"users", "groups", "events", "stats", "exit"},
				Validate: OneOf("users", "groups", "events", "stats", "exit"),
				Rules: []Rule{
					{When: `value == "exit"`, Goto: End},
					{When: `value == "users"`, Goto: "user_lookup"},
					{When: `true`, Goto: "section_note"},
				},
			},
			{
				Name:     "user_lookup",
				Prompt:   "Send the Telegram id of the user.",
				Validate: WithReason(Number(1, 1e15), "send a numeric user id"),
				Next:     func(any, Data) Target { return To("menu") },
			},
			{
				Name:     "section_note",
				Prompt:   "Send a note for this section.",
				Validate: Length(1, 200),
				Next:     func(any, Data) Target { return To("menu") },
			},
		},
	}
}
