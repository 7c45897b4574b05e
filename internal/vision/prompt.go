package vision

import "fmt"

const findSystemPrompt = `You are a precise UI element locator. You receive a browser screenshot and a description of one element. Your task is to find that element and report the pixel coordinates of its center.

Respond ONLY with a JSON object, no explanation or markdown:
{"found": true, "x": 123, "y": 456, "confidence": 0.95, "reasoning": "short note"}

Rules:
- "x" and "y" are the CENTER of the element, in pixels from the top-left of the image
- "confidence" is your honest certainty from 0.0 to 1.0
- If the element is not visible in the screenshot, respond {"found": false, "confidence": 0.0}
- Never guess coordinates for an element you cannot actually see`

const describeSystemPrompt = `You are documenting an automated browser test. You receive a screenshot captured at one recorded step and a hint about the action performed. Write one short sentence describing what the user did at this step, suitable for a test report. Respond with the sentence only, no quotes or markdown.`

func buildFindPrompt(description string) string {
	return fmt.Sprintf("Find this element in the screenshot: %s", description)
}

func buildDescribePrompt(hint string) string {
	if hint == "" {
		return "Describe the action captured in this screenshot."
	}
	return fmt.Sprintf("Action hint: %s\nDescribe what the user did at this step.", hint)
}
