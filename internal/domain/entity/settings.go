package entity

// Значения настроек сайта по умолчанию.
const (
	DefaultWelcomeTitle     = "Welcome to Decoder!"
	DefaultWelcomeSubtitle  = "Test your knowledge and compete with others"
	DefaultQuizInstructions = "Read each question carefully and select your answer within 15 seconds."
)

// SiteSettings хранит редактируемые тексты публичных экранов.
type SiteSettings struct {
	WelcomeTitle     string `json:"welcomeTitle"`
	WelcomeSubtitle  string `json:"welcomeSubtitle"`
	QuizInstructions string `json:"quizInstructions"`
}

// DefaultSiteSettings возвращает настройки по умолчанию.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		WelcomeTitle:     DefaultWelcomeTitle,
		WelcomeSubtitle:  DefaultWelcomeSubtitle,
		QuizInstructions: DefaultQuizInstructions,
	}
}

// WithDefaults подставляет значения по умолчанию вместо пустых полей.
// Частично заполненный блок настроек не ломает публичные экраны.
func (s SiteSettings) WithDefaults() SiteSettings {
	if s.WelcomeTitle == "" {
		s.WelcomeTitle = DefaultWelcomeTitle
	}
	if s.WelcomeSubtitle == "" {
		s.WelcomeSubtitle = DefaultWelcomeSubtitle
	}
	if s.QuizInstructions == "" {
		s.QuizInstructions = DefaultQuizInstructions
	}
	return s
}
