package categorization

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_DefaultRules(t *testing.T) {
	engine := NewDefaultEngine(nil)

	tests := []struct {
		text string
		want Category
	}{
		{"UPI-SWIGGY-1234567890-swiggy@icici Swiggy", Food},
		{"UPI/P2M/OLA/RIDE Ola", Transport},
		{"POS 4321XXXX AMAZON PAY INDIA Amazon", Shopping},
		{"NETFLIX.COM Netflix", Subscriptions},
		{"NEFT CR-ACME CORP SALARY APR", Income},
		{"IMPS-P2P-RAHUL", Transfer},
		{"BESCOM ELECTRICITY BILL", Bills},
		{"SWIGGY INSTAMART ORDER", Groceries},
		{"APOLLO PHARMACY", Health},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m := engine.Match(tt.text)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.Category)
			assert.False(t, m.Override)
		})
	}
}

func TestEngine_ShortPatternsNeedWordBoundary(t *testing.T) {
	engine := NewDefaultEngine(nil)

	assert.Nil(t, engine.Match("COCA COLA BOTTLING"))
	assert.Nil(t, engine.Match("CURRENT ACCOUNT CHARGES"))
	m := engine.Match("OLA CABS")
	require.NotNil(t, m)
	assert.Equal(t, Transport, m.Category)
}

func TestEngine_OverrideWins(t *testing.T) {
	engine := NewDefaultEngine(map[string]Category{"SWIGGY": Groceries, "RAHUL": Food})

	m := engine.Match("UPI-SWIGGY-123")
	require.NotNil(t, m)
	assert.Equal(t, Groceries, m.Category)
	assert.True(t, m.Override)

	m = engine.Match("IMPS-P2P-RAHUL")
	require.NotNil(t, m)
	assert.Equal(t, Food, m.Category)
}

func TestEngine_NoMatch(t *testing.T) {
	assert.Nil(t, NewDefaultEngine(nil).Match("ZQXJ HOLDINGS PVT"))
	assert.Nil(t, NewEngine(nil).Match("anything"))
}

func TestEngine_ManyPatterns(t *testing.T) {
	rules := make([]Rule, 0, 2000)
	for i := 0; i < 2000; i++ {
		rules = append(rules, Rule{Pattern: fmt.Sprintf("MERCHANT%04d", i), Category: Shopping, Priority: 1})
	}
	engine := NewEngine(rules)
	assert.Equal(t, 2000, engine.PatternCount())

	m := engine.Match("POS MERCHANT1999 BANGALORE")
	require.NotNil(t, m)
	assert.Equal(t, "MERCHANT1999", m.Pattern)
}

func TestParse(t *testing.T) {
	c, ok := Parse(" Groceries ")
	assert.True(t, ok)
	assert.Equal(t, Groceries, c)

	c, ok = Parse("crypto")
	assert.False(t, ok)
	assert.Equal(t, Other, c)
}
