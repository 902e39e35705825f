package canonical

// defaultTrackingParams are dropped from every URL in addition to any utm_* key.
var defaultTrackingParams = []string{
	"gclid", "gclsrc", "dclid", "fbclid", "msclkid", "yclid", "igshid", "twclid", "li_fat_id",
	"mc_cid", "mc_eid", "_hsenc", "_hsmi", "mkt_tok",
	"ref", "ref_src", "refid", "referrer", "referer", "src",
	"trk", "trkinfo", "trackingid", "tracking_id",
	"clickid", "click_id", "campaign", "campaignid", "campaign_id",
	"sessionid", "session_id", "sid",
	"gh_src", "lever-origin", "lever-source",
}

// defaultLocationAliases keys are matched after normalization, so case and punctuation
// variants of the same alias do not need separate entries.
var defaultLocationAliases = map[string]string{
	"remote":                "remote",
	"remote us":             "remote",
	"remote usa":            "remote",
	"remote, us":            "remote",
	"remote, usa":           "remote",
	"remote united states":  "remote",
	"remote, united states": "remote",
	"us remote":             "remote",
	"usa remote":            "remote",
	"united states, remote": "remote",
	"fully remote":          "remote",
	"100% remote":           "remote",
	"remote first":          "remote",
	"remote friendly":       "remote",
	"anywhere":              "remote",
	"work from home":        "remote",
	"wfh":                   "remote",
	"telecommute":           "remote",
	"distributed":           "remote",
	"virtual":               "remote",
	"home based":            "remote",
	"remote, anywhere":      "remote",
	"remote anywhere":       "remote",
	"anywhere in the us":    "remote",
	"remote within us":      "remote",
	"remote within the us":  "remote",
	"remote in us":          "remote",

	"remote north america":  "remote, north america",
	"remote, north america": "remote, north america",
	"north america, remote": "remote, north america",
	"remote emea":           "remote, emea",
	"remote europe":         "remote, europe",
	"remote, europe":        "remote, europe",
	"remote uk":             "remote, uk",
	"remote, uk":            "remote, uk",
	"remote canada":         "remote, canada",
	"remote, canada":        "remote, canada",

	"hybrid":           "hybrid",
	"hybrid remote":    "hybrid",
	"remote hybrid":    "hybrid",
	"partially remote": "hybrid",
	"on site":          "onsite",
	"onsite":           "onsite",
	"in office":        "onsite",

	"san francisco":             "san francisco, ca",
	"san francisco, ca":         "san francisco, ca",
	"san francisco, california": "san francisco, ca",
	"san francisco bay area":    "san francisco, ca",
	"sf":                        "san francisco, ca",
	"sf, ca":                    "san francisco, ca",
	"bay area":                  "san francisco, ca",
	"new york":                  "new york, ny",
	"new york, ny":              "new york, ny",
	"new york, new york":        "new york, ny",
	"new york city":             "new york, ny",
	"new york city, ny":         "new york, ny",
	"nyc":                       "new york, ny",
	"ny, ny":                    "new york, ny",
	"manhattan, ny":             "new york, ny",
	"los angeles":               "los angeles, ca",
	"los angeles, california":   "los angeles, ca",
	"la, ca":                    "los angeles, ca",
	"seattle":                   "seattle, wa",
	"seattle, washington":       "seattle, wa",
	"austin":                    "austin, tx",
	"austin, texas":             "austin, tx",
	"boston":                    "boston, ma",
	"boston, massachusetts":     "boston, ma",
	"chicago":                   "chicago, il",
	"chicago, illinois":         "chicago, il",
	"denver":                    "denver, co",
	"denver, colorado":          "denver, co",
	"washington dc":             "washington, dc",
	"washington d c":            "washington, dc",
	"washington, d c":           "washington, dc",
	"minneapolis":               "minneapolis, mn",
	"minneapolis, minnesota":    "minneapolis, mn",
	"london":                    "london, uk",
	"london, england":           "london, uk",
	"london, united kingdom":    "london, uk",
	"berlin":                    "berlin, germany",
	"berlin, de":                "berlin, germany",
	"toronto":                   "toronto, canada",
	"toronto, on":               "toronto, canada",
	"toronto, ontario":          "toronto, canada",
	"bangalore":                 "bengaluru, india",
	"bengaluru":                 "bengaluru, india",
	"bangalore, india":          "bengaluru, india",
}

// defaultTitleAbbreviations are expanded token by token.
var defaultTitleAbbreviations = map[string]string{
	"sr":    "senior",
	"snr":   "senior",
	"jr":    "junior",
	"jnr":   "junior",
	"swe":   "software engineer",
	"sde":   "software engineer",
	"sw":    "software",
	"eng":   "engineer",
	"engr":  "engineer",
	"dev":   "developer",
	"mgr":   "manager",
	"mngr":  "manager",
	"mgmt":  "management",
	"dir":   "director",
	"assoc": "associate",
	"asst":  "assistant",
	"admin": "administrator",
	"vp":    "vice president",
	"svp":   "senior vice president",
	"evp":   "executive vice president",
	"avp":   "assistant vice president",
	"qa":    "quality assurance",
	"ml":    "machine learning",
	"sre":   "site reliability engineer",
	"ops":   "operations",
	"princ": "principal",
	"intl":  "international",
	"lvl":   "level",
}
