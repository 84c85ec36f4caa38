package openai

const rerankSystemPrompt = `You grade how relevant a passage is to a search query.
Reply with a single integer from 0 to 10, where 0 means completely
irrelevant and 10 means the passage directly answers the query.
Reply with the number only.`

const generateSystemPrompt = `Answer the question using only the provided context.
If the context does not contain the answer, say so plainly.
Be concise.`

const faithfulnessSystemPrompt = `You grade whether an answer is supported by the provided context.
Reply with a single integer from 0 to 10, where 0 means the answer
contradicts or invents facts beyond the context, and 10 means every
claim in the answer is grounded in the context.
Reply with the number only.`

const relevanceSystemPrompt = `You grade whether an answer addresses the question asked.
Reply with a single integer from 0 to 10, where 0 means the answer is
off-topic and 10 means it directly and completely addresses the question.
Reply with the number only.`
