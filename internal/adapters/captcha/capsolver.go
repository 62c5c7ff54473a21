package captcha

const capsolverBaseURL = "https://api.capsolver.com"

func NewCapSolver(apiKey string, opts ...Option) Provider {
	return newTaskAPI("capsolver", capsolverBaseURL, apiKey, map[Kind]string{
		KindRecaptchaV2: "ReCaptchaV2TaskProxyLess",
		KindTurnstile:   "AntiTurnstileTaskProxyLess",
	}, opts)
}
