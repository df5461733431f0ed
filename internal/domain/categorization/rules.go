package categorization

// Rule maps a keyword found in a merchant or description to a category.
type Rule struct {
	Pattern  string
	Category Category
	Priority int
	// Override marks a per-owner correction; it beats every keyword rule.
	Override bool
}

const (
	priorityTransfer = 0
	priorityKeyword  = 10
	priorityIncome   = 20
	priorityOverride = 1000
)

var keywordTable = map[Category][]string{
	Food: {
		"SWIGGY", "ZOMATO", "DOMINOS", "PIZZA", "MCDONALD", "KFC", "SUBWAY", "STARBUCKS",
		"BURGER KING", "HALDIRAM", "CHAAYOS", "EATSURE", "RESTAURANT", "CAFE", "FOOD",
	},
	Groceries: {
		"BIGBASKET", "BLINKIT", "ZEPTO", "INSTAMART", "GROFERS", "DMART", "JIOMART",
		"RELIANCE FRESH", "MORE RETAIL", "SPENCERS", "NATURES BASKET", "SUPERMARKET", "GROCERY",
	},
	Transport: {
		"UBER", "OLA", "RAPIDO", "IRCTC", "METRO", "RAILWAY", "FASTAG", "REDBUS", "INDIGO",
		"AIR INDIA", "VISTARA", "PETROL", "DIESEL", "FUEL", "HPCL", "BPCL", "IOCL", "INDIAN OIL", "PARKING",
	},
	Shopping: {
		"AMAZON", "FLIPKART", "MYNTRA", "AJIO", "NYKAA", "MEESHO", "TATA CLIQ", "CROMA",
		"RELIANCE DIGITAL", "DECATHLON", "IKEA", "MALL",
	},
	Bills: {
		"AIRTEL", "JIO", "VODAFONE", "BSNL", "BESCOM", "TATA POWER", "ADANI ELECTRICITY", "MSEDCL",
		"ELECTRICITY", "WATER", "GAS", "BROADBAND", "INTERNET", "RECHARGE", "POSTPAID", "DTH",
		"TATA PLAY", "LIC", "INSURANCE", "EMI", "RENT",
	},
	Entertainment: {
		"BOOKMYSHOW", "PVR", "INOX", "CINEMA", "MOVIE", "THEATRE", "STEAM", "PLAYSTATION",
	},
	Subscriptions: {
		"NETFLIX", "SPOTIFY", "HOTSTAR", "PRIME VIDEO", "YOUTUBE PREMIUM", "APPLE.COM",
		"GOOGLE PLAY", "SONYLIV", "ZEE5", "JIOCINEMA", "AUDIBLE",
	},
	Health: {
		"APOLLO", "PHARMEASY", "1MG", "NETMEDS", "MEDPLUS", "PRACTO", "CULT.FIT",
		"HOSPITAL", "CLINIC", "PHARMACY", "MEDICAL", "DOCTOR",
	},
	Education: {
		"BYJU", "UNACADEMY", "VEDANTU", "UDEMY", "COURSERA", "SCHOOL", "COLLEGE", "UNIVERSITY", "TUITION",
	},
}

// incomeKeywords win over transfer keywords so "NEFT CR SALARY" is income.
var incomeKeywords = []string{"SALARY", "INTEREST", "DIVIDEND", "REFUND", "CASHBACK", "REVERSAL"}

var transferKeywords = []string{"NEFT", "IMPS", "RTGS", "ATM", "CASH WDL", "SELF", "TRANSFER", "P2P"}

// DefaultRules returns the built-in keyword rules.
func DefaultRules() []Rule {
	var rules []Rule
	for _, c := range All {
		for _, kw := range keywordTable[c] {
			rules = append(rules, Rule{Pattern: kw, Category: c, Priority: priorityKeyword})
		}
	}
	for _, kw := range incomeKeywords {
		rules = append(rules, Rule{Pattern: kw, Category: Income, Priority: priorityIncome})
	}
	for _, kw := range transferKeywords {
		rules = append(rules, Rule{Pattern: kw, Category: Transfer, Priority: priorityTransfer})
	}
	return rules
}

// OverrideRules turns per-owner corrections into rules that outrank the
// keyword table. Longer patterns rank higher so the most specific wins.
func OverrideRules(overrides map[string]Category) []Rule {
	rules := make([]Rule, 0, len(overrides))
	for pattern, c := range overrides {
		rules = append(rules, Rule{
			Pattern:  pattern,
			Category: c,
			Priority: priorityOverride + len(pattern),
			Override: true,
		})
	}
	return rules
}
