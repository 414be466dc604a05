package mailer

import "fmt"

// TeamInviteBody renders the invitation email. The wording carries the
// 7-day expiry contract of invite tokens.
func TeamInviteBody(teamName, inviterName, inviteLink string) (subject, body string) {
	subject = fmt.Sprintf("You're invited to join %s", teamName)
	body = fmt.Sprintf(`<html>
	<body>
		<h2>Team Invitation</h2>
		<p>%s has invited you to join the team "%s".</p>
		<p>Click the link below to accept the invitation. This invitation will expire in 7 days.</p>
		<p><a href="%s">Accept Invitation</a></p>
		<p>If you don't have an account yet, you can sign up after clicking the link.</p>
	</body>
</html>`, inviterName, teamName, inviteLink)
	return subject, body
}

// PasswordResetBody renders the reset email. The wording carries the
// 1-hour expiry contract of reset tokens.
func PasswordResetBody(name, resetLink string) (subject, body string) {
	subject = "Reset your password"
	body = fmt.Sprintf(`<html>
	<body>
		<h2>Password Reset Request</h2>
		<p>Hi %s,</p>
		<p>Click the link below to reset your password. This link will expire in 1 hour.</p>
		<p><a href="%s">Reset Password</a></p>
		<p>If you didn't request this, please ignore this email.</p>
	</body>
</html>`, name, resetLink)
	return subject, body
}

// IssueAssignedBody renders the assignment notification email.
func IssueAssignedBody(assigneeName, issueTitle, issueLink string) (subject, body string) {
	subject = fmt.Sprintf("You've been assigned to: %s", issueTitle)
	body = fmt.Sprintf(`<html>
	<body>
		<h2>New Issue Assignment</h2>
		<p>Hi %s,</p>
		<p>You have been assigned to a new issue:</p>
		<p><strong>%s</strong></p>
		<p><a href="%s">View Issue</a></p>
	</body>
</html>`, assigneeName, issueTitle, issueLink)
	return subject, body
}

// CommentNotificationBody renders the new-comment email.
func CommentNotificationBody(recipientName, commenterName, issueTitle, commentContent, issueLink string) (subject, body string) {
	subject = fmt.Sprintf("New comment on: %s", issueTitle)
	body = fmt.Sprintf(`<html>
	<body>
		<h2>New Comment</h2>
		<p>Hi %s,</p>
		<p>%s commented on "%s":</p>
		<blockquote>%s</blockquote>
		<p><a href="%s">View Issue</a></p>
	</body>
</html>`, recipientName, commenterName, issueTitle, commentContent, issueLink)
	return subject, body
}
