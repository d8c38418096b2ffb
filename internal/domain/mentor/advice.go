package mentor

// councilViews holds each mentor's canned counsel for a dilemma.
var councilViews = map[ID]string{
	Machiavelli: `Your situation requires pragmatic analysis. Consider these points:

1. **Assess the Power Dynamics**: Who holds leverage? Identify their motivations and weaknesses.

2. **Calculate the Risks**: What are the potential costs of action versus inaction? Choose the path that preserves your position.

3. **Maintain Appearances**: Whether you act decisively or diplomatically, ensure your reputation remains intact. Perception shapes reality.

The question is not what is right, but what is effective. Act accordingly.`,

	Napoleon: `This calls for decisive action. Here's my counsel:

1. **Speed is Essential**: Delay breeds doubt. Once you've chosen your course, execute with conviction.

2. **Concentrate Your Forces**: Don't dilute your efforts. Focus all resources on the critical point of decision.

3. **Lead from the Front**: Your commitment will inspire others. Show no hesitation in your resolve.

Fortune favors the bold, but only when boldness is backed by preparation. Strike now.`,

	Aurelius: `Before acting, examine your principles:

1. **What is Within Your Control?**: Focus only on your choices and responses, not on external circumstances.

2. **Is This Aligned with Virtue?**: Will your action demonstrate wisdom, justice, courage, and temperance?

3. **What Would the Best Version of Yourself Do?**: Rise above immediate reactions and choose the path of integrity.

Remember: we cannot control what happens to us, only how we respond. Choose wisely.`,
}

// CouncilView returns the mentor's counsel for a dilemma. The text does not
// depend on the dilemma itself.
func CouncilView(id ID, _ string) string {
	return councilViews[Resolve(id).ID]
}
