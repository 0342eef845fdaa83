package rules

// DefaultGroups returns the built-in greeting, farewell and thanks groups.
// Phrases are written against the default normalizer profile.
func DefaultGroups() []Group {
	return []Group{
		{
			Name: "greeting",
			Patterns: []Pattern{
				{"hi"}, {"hello"}, {"hey"}, {"greetings"},
				{"good morning"}, {"good afternoon"}, {"good evening"},
			},
			Responses: []string{
				"Hello! How can I help you today?",
				"Hi there! What would you like to know?",
			},
		},
		{
			Name: "farewell",
			Patterns: []Pattern{
				{"bye"}, {"goodbye"}, {"farewell"}, {"good night"}, {"see later"},
			},
			Responses: []string{
				"Goodbye! Come back any time.",
				"See you later!",
			},
		},
		{
			Name: "thanks",
			Patterns: []Pattern{
				{"thank"}, {"thanks"}, {"thx"},
			},
			Responses: []string{
				"You're welcome!",
				"Happy to help!",
			},
		},
	}
}
