package scanning

// Recognizer is the OCR engine boundary: it turns one camera frame into the
// text regions it could read, in detection order. Regions may span several
// printed lines.
type Recognizer interface {
	// Recognize reads the text regions of an image frame
	Recognize(imageData []byte, contentType string) ([]string, error)
	// Close releases any resources held by the recognizer
	Close() error
}

// transcribeInstruction is the system message of the LLM backed recognizers
const transcribeInstruction = "You transcribe text from photos exactly, character by character."

// fragmentPrompt is shared by the LLM backed recognizers
const fragmentPrompt = `You are an OCR engine looking at a photo of the front or back of a payment card.

List every separate block of printed or embossed text you can see, exactly as it appears, including digits, dates, labels such as "VALID THRU", and names.

Rules:
- One array element per text block, in the order you find them
- Keep line breaks inside a block as "\n"
- Copy characters as you see them; do not correct, group or reformat digits
- Do not guess text you cannot read

Return ONLY a JSON array of strings, for example:
["VALID THRU 11/29", "4111 1111 1111 1111", "JOHN SMITH"]

Do not include any text before or after the JSON and do not use markdown code blocks`
