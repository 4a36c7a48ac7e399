package outreach

// messageTemplates maps template references on action steps to outbound
// message bodies. Placeholders are filled from CRM data by the channel
// integration.
var messageTemplates = map[string]string{
	"overdue_invoice_reminder": "Subject: Invoice Past Due - Action Required\n\n" +
		"Dear {contact_name},\n\n" +
		"This is a reminder that invoice {invoice_id} for ${amount} became overdue on " +
		"{due_date}. Please arrange payment at your earliest convenience or contact us " +
		"to discuss a payment plan.\n\n" +
		"Best regards,\nRevenuePilot",

	"payment_escalation": "Subject: URGENT: Outstanding Payment for {account_name}\n\n" +
		"Dear {contact_name},\n\n" +
		"Despite previous reminders, invoices totalling ${amount} remain unpaid. " +
		"Please contact us within 48 hours to resolve this matter and avoid further action.\n\n" +
		"Best regards,\nRevenuePilot",

	"usage_drop_alert": "Subject: We noticed a drop in your usage - can we help?\n\n" +
		"Hi {contact_name},\n\n" +
		"We noticed your usage of {product_name} has decreased recently. " +
		"We'd love to help you get more value. Would you be open to a brief call?\n\n" +
		"Best regards,\nRevenuePilot",

	"renewal_intro": "Subject: Your contract is coming up for renewal\n\n" +
		"Dear {contact_name},\n\n" +
		"Your contract expires on {contract_end_date}. We'd love to continue working with " +
		"you. Please let us know a good time to discuss your renewal options.\n\n" +
		"Best regards,\nRevenuePilot",

	"executive_check_in": "Subject: Checking in on your team's experience\n\n" +
		"Dear {contact_name},\n\n" +
		"I wanted to personally reach out to make sure your team is getting full value " +
		"from your investment. Could we schedule a brief call this week?\n\n" +
		"Best regards,\nRevenuePilot",

	"account_health_check": "Subject: Quick check-in from RevenuePilot\n\n" +
		"Hi {contact_name},\n\n" +
		"Hope all is well! We wanted to check in and see how things are going. " +
		"Do you have any questions or concerns we can help address?\n\n" +
		"Best regards,\nRevenuePilot",
}

const defaultTemplate = "account_health_check"

// Template resolves a template reference, falling back to the generic
// health check
func Template(ref string) string {
	if body, ok := messageTemplates[ref]; ok {
		return body
	}
	return messageTemplates[defaultTemplate]
}
