// ABOUTME: Keyword dispatch policy mapping user input to a canned medical topic
// ABOUTME: Priority-ordered substring scan with a uniform random fallback

package responder

import (
	"strings"

	"github.com/2389/mediflow/internal/diagram"
)

// Topic identifies a canned reply.
type Topic string

const (
	TopicNone         Topic = ""
	TopicCardio       Topic = "cardio"
	TopicHeartFailure Topic = "heart_failure"
	TopicDiabetes     Topic = "diabetes"
	TopicNeuro        Topic = "neuro"
	TopicRespiratory  Topic = "respiratory"
)

type keywordSet struct {
	topic    Topic
	keywords []string
}

// policy is scanned in order; the first set with any keyword present wins.
var policy = []keywordSet{
	{TopicCardio, []string{"heart", "cardio"}},
	{TopicHeartFailure, []string{"failure"}},
	{TopicDiabetes, []string{"diabetes"}},
	{TopicNeuro, []string{"glasgow", "coma"}},
	{TopicRespiratory, []string{"lung", "breath"}},
}

// Topics returns every topic in priority order.
func Topics() []Topic {
	out := make([]Topic, len(policy))
	for i, ks := range policy {
		out[i] = ks.topic
	}
	return out
}

// Classify returns the first topic whose keywords appear in text, ignoring
// case, or TopicNone if nothing matches.
func Classify(text string) Topic {
	lower := strings.ToLower(text)
	for _, ks := range policy {
		for _, kw := range ks.keywords {
			if strings.Contains(lower, kw) {
				return ks.topic
			}
		}
	}
	return TopicNone
}

const (
	cardioImage   = "https://images.unsplash.com/photo-1559757175-5700dde675bc?ixlib=rb-4.0.3&auto=format&fit=crop&w=1389&q=80"
	diabetesImage = "https://images.unsplash.com/photo-1579154341098-e4e158cc7f55?ixlib=rb-4.0.3&auto=format&fit=crop&w=1770&q=80"
)

var canned = map[Topic]Reply{
	TopicCardio: {
		Text: "Cardiovascular examination is a systematic process that includes inspection, palpation, " +
			"percussion, and auscultation. Follow this sequence to make sure the assessment is complete.\n\n" +
			"Let me break it down for you:",
		Diagram:  diagram.SampleFlowchart,
		ImageURL: cardioImage,
	},
	TopicHeartFailure: {
		Text: "Heart failure develops when cardiac output falls and compensatory mechanisms activate, " +
			"including the renin-angiotensin-aldosterone system and the sympathetic nervous system. " +
			"They help at first but eventually drive cardiac remodeling and worsening function.",
		Diagram: diagram.SampleFlowchart,
	},
	TopicDiabetes: {
		Text: "Diabetes mellitus is chronic hyperglycemia caused by defects in insulin secretion, insulin " +
			"action, or both. Type 1 results from autoimmune destruction of pancreatic beta cells, while " +
			"Type 2 involves insulin resistance and relative insulin deficiency.",
		ImageURL: diabetesImage,
	},
	TopicNeuro: {
		Text: "The Glasgow Coma Scale scores eye opening (1-4), verbal response (1-5), and motor response " +
			"(1-6) for a total between 3 and 15. A score of 8 or less generally indicates severe brain " +
			"injury and a threatened airway.",
		Diagram: diagram.SampleFlowchart,
	},
	TopicRespiratory: {
		Text: "Start a respiratory assessment with rate, effort, and oxygen saturation, then inspect chest " +
			"movement, palpate for expansion, percuss, and auscultate each lung zone comparing side to side.",
	},
}

// CannedReply returns the fixed reply for topic.
func CannedReply(topic Topic) (Reply, bool) {
	r, ok := canned[topic]
	return r, ok
}

// Suggestions are starter questions offered on an empty conversation.
var Suggestions = []string{
	"Explain the pathophysiology of heart failure",
	"How do I perform a cardiovascular examination?",
	"What's the difference between Type 1 and Type 2 diabetes?",
	"Explain the Glasgow Coma Scale",
}
