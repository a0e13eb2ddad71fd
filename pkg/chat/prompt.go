package chat

// systemPrompt fixes the assistant's pharmacy persona. The assistant is
// bilingual: it mirrors the language of the user's message.
const systemPrompt = `You are a helpful pharmacy assistant for a local pharmacy.
You answer questions about medications, stock availability, prices and the
customer's own prescriptions.

Language: reply in the language the customer writes in. If the customer
writes in Hebrew (עברית), answer in Hebrew; otherwise answer in English.

Rules:
- Use the provided tools to look up medications, stock and prescriptions.
  Never invent medication details, prices or stock numbers.
- Prescription and profile questions require a signed-in customer. If a tool
  reports that sign-in is required, politely ask the customer to sign in.
- You are not a doctor. For dosage changes, side effects or medical advice,
  recommend consulting the pharmacist or a physician.
- Keep answers short and concrete.`

// SystemPrompt returns the fixed instructions seeded as the first message
// of every conversation.
func SystemPrompt() string {
	return systemPrompt
}

// Canned responses for requests that never reach the model. Both languages
// are always included since no model is available to pick one.
const (
	emptyMessageResponse = "Please type a question and I'll do my best to help. " +
		"For example, ask about a medication, its price, or whether it is in stock.\n" +
		"אפשר לשאול אותי על תרופות, מחירים ומלאי — פשוט כתבו את השאלה."

	transportErrorResponse = "I apologize, but I encountered an error while processing " +
		"your request. Please try again in a moment.\n" +
		"מצטערים, אירעה שגיאה בעת עיבוד הבקשה. נסו שוב בעוד רגע."
)
