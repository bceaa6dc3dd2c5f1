package inbox

import (
	"context"
)

// listScope binds the conversation list keys.
func (s *Session) listScope() Scope {
	return Scope{
		Name: "list",
		Shortcuts: []Shortcut{
			{
				Keys:        []string{"up", "k"},
				Description: "Previous conversation",
				Category:    CategoryNavigation,
				Handler: func(context.Context) error {
					s.List.MoveSelection(DirectionPrev)
					return nil
				},
			},
			{
				Keys:        []string{"down", "j"},
				Description: "Next conversation",
				Category:    CategoryNavigation,
				Handler: func(context.Context) error {
					s.List.MoveSelection(DirectionNext)
					return nil
				},
			},
			{
				Keys:        []string{"right", "l", "enter"},
				Description: "Open conversation",
				Category:    CategoryNavigation,
				Condition:   func() bool { return s.List.Selected() != "" },
				Handler: func(ctx context.Context) error {
					return s.Open(ctx, s.List.Selected())
				},
			},
			{
				Keys:        []string{"e", "a"},
				Description: "Archive conversation",
				Category:    CategoryActions,
				Condition:   func() bool { return s.List.Selected() != "" },
				Handler: func(ctx context.Context) error {
					return s.archive(ctx, s.List.Selected())
				},
			},
		},
	}
}

// viewScope binds the open conversation keys.
func (s *Session) viewScope() Scope {
	typing := s.View.InputFocused

	return Scope{
		Name:   "view",
		Typing: typing,
		Shortcuts: []Shortcut{
			{
				Keys:        []string{"f"},
				Description: "Focus reply",
				Category:    CategoryCompose,
				Handler: func(context.Context) error {
					s.View.FocusInput()
					return nil
				},
			},
			{
				Keys:        []string{"g"},
				Description: "Use suggestion",
				Category:    CategoryCompose,
				Handler: func(context.Context) error {
					s.View.AcceptSuggestion()
					return nil
				},
			},
			{
				Keys:        []string{"left", "h"},
				Description: "Back to list",
				Category:    CategoryNavigation,
				Handler: func(context.Context) error {
					s.Back()
					return nil
				},
			},
			{
				Keys:        []string{"e"},
				Description: "Archive conversation",
				Category:    CategoryActions,
				Handler:     s.ArchiveOpen,
			},
			{
				Keys:        []string{"esc"},
				Description: "Leave reply",
				Category:    CategoryCompose,
				WhileTyping: true,
				Condition:   typing,
				Handler: func(context.Context) error {
					s.View.Unfocus()
					return nil
				},
			},
			{
				Keys:        []string{"enter"},
				Description: "Send reply",
				Category:    CategoryCompose,
				WhileTyping: true,
				Condition:   typing,
				Handler:     s.Send,
			},
		},
	}
}
