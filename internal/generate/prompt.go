package generate

import "fmt"

// BuildPrompt renders the generation prompt. The STRICT FORMAT section must
// stay in lockstep with the anchor and field labels the extractor recognizes.
func BuildPrompt(ticketDescription string) string {
	return fmt.Sprintf(`Generate comprehensive test cases for any type of functionality based on this ticket description: %s

TESTING STANDARDS:
- Use ISTQB (International Software Testing Qualifications Board) best practices
- Follow the Given-When-Then format for test case design
- Ensure test cases cover positive, negative, and edge case scenarios
- Include boundary value analysis
- Consider security, performance, and usability aspects

TEST CASE QUALITY CRITERIA:
- Precision: Clearly defined steps
- Reproducibility: Exact input conditions
- Completeness: Cover multiple scenarios
- Traceability: Link to specific requirements

SPECIFICS TO INCLUDE FOR EACH TEST CASE:
- Unique Test Case ID (use ID-001 format)
- Section name (like "Header", "Navigation", "Login", etc.)
- Detailed Preconditions (keep this brief and focused)
- APPROPRIATE NUMBER OF DETAILED, NUMBERED STEPS (use as many as needed for the specific test - could be 3, 5, 8, or more)
- Expected Results (what should happen when steps are executed correctly)
- Input Data (specific values to use in testing)
- Notes (optional additional context)

STRICT FORMAT REQUIREMENTS FOR EACH TEST CASE:
Follow this EXACT structure with proper spacing and clear section headers:

Test Case ID-001:
Section: [Feature or component name]
Preconditions: [Brief setup conditions - do NOT include the steps here]
Steps:
1. [First step]
2. [Second step]
3. [Third step]
... [Add more steps as needed for thoroughness]
Expected Result: [Clearly state what should happen]
Input: [Specific test data]
Notes: [Additional context if needed]

FORMATTING RULES:
1. NEVER place the steps inside the preconditions section
2. ALWAYS place test steps in the Steps section with numbered steps (1., 2., etc.)
3. ALWAYS make Expected Result a separate section after Steps
4. DO NOT use markdown headers (like ### or ####) within test cases
5. DO NOT use placeholders like 'None' or 'N/A' - provide actual content for each field
6. Separate each test case with a blank line
7. Keep fields clearly separated - don't mix content between fields

EXAMPLE OF A PROPERLY FORMATTED TEST CASE:
Test Case ID-001:
Section: Login
Preconditions: User has a valid account with username "testuser" and password "securepass123"
Steps:
1. Open the login page
2. Enter username "testuser" in the username field
3. Enter password "securepass123" in the password field
4. Click the "Login" button
Expected Result: User is successfully logged in and dashboard page is displayed
Input: Username: testuser, Password: securepass123
Notes: This test verifies the basic login functionality with valid credentials`, ticketDescription)
}
