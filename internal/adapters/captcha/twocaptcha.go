package captcha

const twoCaptchaBaseURL = "https://api.2captcha.com"

func NewTwoCaptcha(apiKey string, opts ...Option) Provider {
	return newTaskAPI("2captcha", twoCaptchaBaseURL, apiKey, map[Kind]string{
		KindRecaptchaV2: "RecaptchaV2TaskProxyless",
		KindTurnstile:   "TurnstileTaskProxyless",
	}, opts)
}

// NewProvider picks CapSolver when its key is set, 2Captcha otherwise.
func NewProvider(capsolverKey, twoCaptchaKey string, opts ...Option) (Provider, error) {
	switch {
	case capsolverKey != "":
		return NewCapSolver(capsolverKey, opts...), nil
	case twoCaptchaKey != "":
		return NewTwoCaptcha(twoCaptchaKey, opts...), nil
	}
	return nil, ErrNoProvider
}
