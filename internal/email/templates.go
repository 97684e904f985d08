package email

import (
	"fmt"
	"html"
)

const layoutTop = `<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Arial,Helvetica,sans-serif;">
<table width="100%%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;background:#ffffff;">
<tr><td style="padding:32px;">`

const layoutBottom = `</td></tr>
<tr><td style="padding:16px 32px;color:#8a8f98;font-size:12px;">You are receiving this email because you work with our team.</td></tr>
</table>
</body>
</html>`

func welcomeHTML(name string) string {
	return layoutTop + fmt.Sprintf(`
<h2 style="color:#1a1f36;">Welcome aboard, %s!</h2>
<p style="color:#4f566b;">We're excited to start working with you. Your dedicated team will be in touch shortly with next steps for your project.</p>`,
		html.EscapeString(name)) + layoutBottom
}

func portalInviteHTML(name, portalURL string) string {
	return layoutTop + fmt.Sprintf(`
<h2 style="color:#1a1f36;">Your client portal is ready</h2>
<p style="color:#4f566b;">Hi %s, you can now follow project progress, review proposals, and pay invoices in one place.</p>
<p style="margin:24px 0;"><a href="%s" style="background:#4f46e5;color:#ffffff;padding:12px 24px;border-radius:6px;text-decoration:none;">Open your portal</a></p>`,
		html.EscapeString(name), portalURL) + layoutBottom
}

func projectCompletedHTML(name, projectName string) string {
	return layoutTop + fmt.Sprintf(`
<h2 style="color:#1a1f36;">%s is complete</h2>
<p style="color:#4f566b;">Hi %s, we've wrapped up all milestones on this project. Thank you for trusting us with it &mdash; we'd love to hear your feedback.</p>`,
		html.EscapeString(projectName), html.EscapeString(name)) + layoutBottom
}

func invoiceHTML(name, title string, totalCents int64, paymentURL string) string {
	body := layoutTop + fmt.Sprintf(`
<h2 style="color:#1a1f36;">Invoice: %s</h2>
<p style="color:#4f566b;">Hi %s, a new invoice for <strong>$%.2f</strong> is ready.</p>`,
		html.EscapeString(title), html.EscapeString(name), float64(totalCents)/100)
	if paymentURL != "" {
		body += fmt.Sprintf(`
<p style="margin:24px 0;"><a href="%s" style="background:#059669;color:#ffffff;padding:12px 24px;border-radius:6px;text-decoration:none;">Pay online</a></p>
<p style="color:#8a8f98;font-size:12px;">Or scan the attached QR code to pay from your phone.</p>`, paymentURL)
	}
	return body + layoutBottom
}

func proposalHTML(name, title, viewURL string) string {
	return layoutTop + fmt.Sprintf(`
<h2 style="color:#1a1f36;">Proposal: %s</h2>
<p style="color:#4f566b;">Hi %s, we've prepared a proposal for you. Take a look and let us know what you think.</p>
<p style="margin:24px 0;"><a href="%s" style="background:#4f46e5;color:#ffffff;padding:12px 24px;border-radius:6px;text-decoration:none;">View proposal</a></p>`,
		html.EscapeString(name), html.EscapeString(title), viewURL) + layoutBottom
}

func followUpHTML(body string) string {
	// Follow-up bodies are plain text drafted by the model; preserve line breaks.
	escaped := html.EscapeString(body)
	return layoutTop + `<div style="color:#1a1f36;white-space:pre-line;">` + escaped + `</div>` + layoutBottom
}
