package intent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Category
	}{
		{"hi", CategoryGreeting},
		{"hello", CategoryGreeting},
		{"Hi!", CategoryGreeting},
		{"HELLO", CategoryGreeting},
		{"heyyyy", CategoryGreeting},
		{"hey there", CategoryGreeting},
		{"hello friend", CategoryGreeting},
		{"how are you", CategoryWellBeing},
		{"How are you?", CategoryWellBeing},
		{"what's up", CategoryWellBeing},
		{"how's it going", CategoryWellBeing},
		{"who are you", CategoryIdentity},
		{"what's your name", CategoryIdentity},
		{"tell me about yourself", CategoryIdentity},

		{"what is the weather", CategoryNone},
		{"tell me about machine learning", CategoryNone},
		{"how does photosynthesis work", CategoryNone},
		{"search for API documentation", CategoryNone},
		{"hey there how are you doing today", CategoryNone},
		{"What is the return policy?", CategoryNone},

		{"", CategoryNone},
		{"  ", CategoryNone},
		{"a", CategoryNone},
		{"?", CategoryNone},
		{"!!", CategoryNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.query), "Classify(%q)", tt.query)
	}
}

func TestAnalyzeRotatesReplies(t *testing.T) {
	a := NewAnalyzer()

	first := a.Analyze("hi")
	second := a.Analyze("hello")
	third := a.Analyze("hey")
	fourth := a.Analyze("hi")

	assert.True(t, first.IsSmallTalk())
	assert.NotEqual(t, first.Reply, second.Reply)
	assert.NotEqual(t, second.Reply, third.Reply)
	assert.Equal(t, first.Reply, fourth.Reply)

	// Categories rotate independently.
	wb := a.Analyze("how are you")
	assert.Equal(t, defaultReplies[CategoryWellBeing][0], wb.Reply)
}

func TestAnalyzeKnowledgeQuery(t *testing.T) {
	r := NewAnalyzer().Analyze("What is the return policy?")
	assert.False(t, r.IsSmallTalk())
	assert.Empty(t, r.Reply)
}

func TestAnalyzeConcurrent(t *testing.T) {
	a := NewAnalyzer()
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotEmpty(t, a.Analyze("hi").Reply)
		}()
	}
	wg.Wait()
}
