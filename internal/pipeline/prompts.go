package pipeline

import (
	"fmt"
	"strings"
)

// FieldDelimiter separates fields in generation and grading output lines.
const FieldDelimiter = "~"

// AssistantName is the display name of provisioned assistants.
const AssistantName = "Exam Generator"

// AssistantSystemPrompt configures a user's persistent examiner assistant.
const AssistantSystemPrompt = `You are the Testem examiner: an assessment engine that builds adaptive exams from the study documents attached to each conversation and grades the answers given to them.

Adaptive difficulty:
- When a learner consistently scores above 85% on a topic, raise the difficulty: remove scaffolding, require multi-step reasoning or combine concepts.
- When a learner scores below 50% on a topic, isolate the fundamentals and reinforce core definitions before increasing difficulty.
- Prefer questions that force active recall over recognition.

Behaviour:
- Questions must be grounded in the uploaded documents. Outside knowledge may only be used for analogies.
- Revisit topics the learner previously failed, phrased in new contexts, to check retention.
- When grading, judge the reasoning as well as the final answer.
- Always follow the output format requested in each message exactly.`

// BuildGenerationPrompt renders the exam generation request for cfg.
func BuildGenerationPrompt(cfg ExamConfig) string {
	difficulty := string(cfg.Difficulty)

	var b strings.Builder
	b.WriteString("Before generating, review the conversation history for this learner's past exam performance.\n")
	b.WriteString("1. Weak topics (previous score below 60%) are mandatory in this exam and must test fundamental understanding.\n")
	b.WriteString("2. Strong topics (previous score above 85%) must appear at an elevated difficulty: add constraints, remove given values or apply them to new scenarios.\n")
	b.WriteString("3. If there is no history, treat concepts that are commonly counter-intuitive for students as medium-hard.\n\n")

	b.WriteString("Difficulty calibration:\n")
	fmt.Fprintf(&b, "The learner requested %q difficulty. You may override it when it conflicts with their history:\n", difficulty)
	b.WriteString("- If they requested easy but consistently score above 90%, generate medium or hard questions.\n")
	b.WriteString("- If they requested hard but have a history of failing, generate medium questions focused on foundations.\n\n")

	b.WriteString("Use the uploaded documents to write an exam on their content. Do not copy questions that already appear in the documents; write new questions on the same topics.\n")
	fmt.Fprintf(&b, "Produce exactly %d questions of %s difficulty. Each question is multiple choice, true-false, short answer or long answer.\n", cfg.NumberOfQuestions, difficulty)
	fmt.Fprintf(&b, "Write one question per line in the format question%[1]stype%[1]soptions%[1]scorrectAnswer, using '%[1]s' between fields.\n", FieldDelimiter)
	b.WriteString("For multiple-choice questions, list the options separated by commas without surrounding brackets and without padding spaces. For every other type write [] as the options field.\n")
	fmt.Fprintf(&b, "Write the type as one of: %s, %s, %s, %s.\n", QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionLongAnswer)
	b.WriteString("Every question must be answerable without external material such as graphs or tables.\n")

	if subject := strings.TrimSpace(cfg.SubjectContext); subject != "" {
		b.WriteString("\nThe learner also provided a subject or context for this exam. Ignore it if it is not relevant to the documents. ")
		b.WriteString("If it is relevant, prioritise the matching parts of the documents. Context: ")
		b.WriteString(subject)
		b.WriteString("\n")
	}

	b.WriteString("\nAt least 20% of the questions must connect two distinct concepts from the documents.\n\n")
	b.WriteString("Output ONLY the question lines. No introduction, numbering or closing text.\n")
	fmt.Fprintf(&b, "Example line:\nCalculate the derivative of \\(x^2\\).%[1]sshort-answer%[1]s[]%[1]s\\(2x\\)", FieldDelimiter)

	return b.String()
}

const gradingPreamble = `You will receive questions you generated together with the learner's answers at the end of this message.
Reply with one line per question, in the same order as the questions, with two fields separated by '~'.
The first field is YES if the answer is correct and NO if it is not. Grade short and long answers like a university instructor: an answer that is about 80% correct counts as correct.
The second field is the most complete correct answer you can give, or the exact result for numerical questions.
DO NOT OUTPUT ANYTHING OTHER THAN THE LINES, ONE PER QUESTION.

Here are the questions and answers:

`

// BuildGradingPrompt renders the grading request. Lines appear in input order
// and the grading output is matched back by position.
func BuildGradingPrompt(questions []AnsweredQuestion) string {
	var b strings.Builder
	b.WriteString(gradingPreamble)
	for i, q := range questions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\nUser Answer: %s", i+1, q.Prompt, q.UserAnswer)
	}
	return b.String()
}
