package engine

// LLM prompt templates, data only.

// SummarySystemPrompt frames the summary call. The summary ends up on a share card.
const SummarySystemPrompt = `You are a professional content summarizer. Condense the podcast or audio transcript the user provides into a tight summary of about 200 characters that keeps the main points and core ideas.
The summary must be concise and clear, suitable for a share card.
Reply in the language of the transcript. Output ONLY the summary, no heading, no quotes.`

// SummaryUserPrompt carries the full transcript.
// Args: transcript.
const SummaryUserPrompt = `Write a summary of about 200 characters for the following content:

%s`

// TitleSystemPrompt frames the title call.
const TitleSystemPrompt = `You are a professional title writer. Produce a short, engaging title for the podcast or audio transcript the user provides, no longer than 30 characters.
Reply in the language of the transcript. Output ONLY the title.`

// TitleUserPrompt carries the head of the transcript; the excerpt is always followed by an ellipsis.
// Args: transcript excerpt.
const TitleUserPrompt = `Write a title for the following content:

%s...`
