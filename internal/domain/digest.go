package domain

import (
	"fmt"
	"strings"
)

// Digest is the formatted multi-warning summary sent to a subscriber.
// HTML goes out by email, Text by SMS.
type Digest struct {
	Subject string
	HTML    string
	Text    string
}

// DigestSubject is the subject line for all alert digests.
const DigestSubject = "Flood Alerts And Warning"

// Welcome messages sent once on subscription.
const (
	SubscribeEmailHTML = "Hello!<br /><br />Thanks for subscribing to the email flood alerts and warnings!" +
		" Daily emails at 9am will be sent, containig updates about flood alerts and warning for a 5km radius!<br /><br /><br /> Stay dry,<br />floodalertskentuk"

	SubscribeSMSText = "Hello!\n\nThanks for subscribing to the SMS flood alerts and warnings!\n\n" +
		"You will receive daily SMS update at 9am about flood alerts and warning for a 5km radius!\n\nStay dry!"
)

// BuildDailyDigest formats the daily update for a subscriber's location.
func BuildDailyDigest(warnings []FloodWarning) Digest {
	return buildDigest(warnings,
		"This is your daily update about alerts and warning in a 5km radius from your location.",
		"No alerts or warning around you!")
}

// BuildTestDigest formats the on-demand preview for arbitrary coordinates.
func BuildTestDigest(warnings []FloodWarning) Digest {
	return buildDigest(warnings,
		"This is a TEST email about warnings and alerts in the area of 5 km from the given coordinates.",
		"TEST: No alerts or warning around you!")
}

func buildDigest(warnings []FloodWarning, intro, emptyLine string) Digest {
	var b strings.Builder
	b.WriteString("Hello!<br /><br />")
	b.WriteString(intro)
	b.WriteString("<br /><br />")

	if len(warnings) == 0 {
		b.WriteString(emptyLine)
		b.WriteString("<br /><br />")
	}

	for _, w := range warnings {
		fmt.Fprintf(&b, "Description: %s<br /><br />", w.Description)
		fmt.Fprintf(&b, "Message: %s<br /><br />", w.Message)
		fmt.Fprintf(&b, "Severity: %s<br /><br />", w.Severity)
		fmt.Fprintf(&b, "Severity Level: %d<br /><br />", w.SeverityLevel)
		if info, ok := SeverityAdvice(w.SeverityLevel); ok {
			fmt.Fprintf(&b, "Advice: %s<br /><br />", info.Advice)
		}
		b.WriteString("<br />")
	}

	b.WriteString("Stay dry,<br />floodalertskentuk")

	html := b.String()
	return Digest{
		Subject: DigestSubject,
		HTML:    html,
		Text:    strings.ReplaceAll(html, "<br />", "\n"),
	}
}
