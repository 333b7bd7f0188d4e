package query

import (
	"github.com/tmc/langchaingo/prompts"
)

const DefaultQATemplate = "Context information is below.\n" +
	"---------------------\n" +
	"{context_str}\n" +
	"---------------------\n" +
	"Given the context information and not prior knowledge, answer the query.\n" +
	"Query: {query_str}\n" +
	"Answer: "

const DefaultRefineTemplate = "The original query is as follows: {query_str}\n" +
	"We have provided an existing answer: {existing_answer}\n" +
	"We have the opportunity to refine the existing answer (only if needed) with some more context below.\n" +
	"------------\n" +
	"{context_msg}\n" +
	"------------\n" +
	"Given the new context, refine the original answer to better answer the query. " +
	"If the context isn't useful, return the original answer.\n" +
	"Refined Answer: "

func newTemplate(text string, vars ...string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       text,
		InputVariables: vars,
		TemplateFormat: prompts.TemplateFormatFString,
	}
}

func qaTemplate(text string) prompts.PromptTemplate {
	return newTemplate(text, "context_str", "query_str")
}

func refineTemplate(text string) prompts.PromptTemplate {
	return newTemplate(text, "query_str", "existing_answer", "context_msg")
}
