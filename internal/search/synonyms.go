package search

// Coating-domain vocabulary used by the term expander. Users describe
// products in trade language ("rust paint", "clear coat") while catalog
// records use formulation language ("anti-corrosive primer", "varnish"),
// so expansion bridges the two the same way a counter clerk would.

// DomainSynonyms maps normalized query terms and phrases to catalog
// vocabulary equivalents.
var DomainSynonyms = map[string][]string{
	// Product categories
	"paint":    {"coating", "enamel", "finish"},
	"coating":  {"paint", "finish"},
	"primer":   {"undercoat", "sealer", "base coat"},
	"topcoat":  {"finish coat", "top coat", "finish"},
	"varnish":  {"clear coat", "lacquer", "clear finish"},
	"lacquer":  {"varnish", "clear coat"},
	"sealer":   {"sealant", "primer"},
	"enamel":   {"paint", "gloss finish"},
	"stain":    {"wood finish", "tint"},
	"thinner":  {"solvent", "reducer", "diluent"},
	"hardener": {"curing agent", "activator", "catalyst"},

	// Chemistry
	"epoxy":        {"epoxide", "two component", "2k"},
	"polyurethane": {"urethane", "pu"},
	"urethane":     {"polyurethane", "pu"},
	"acrylic":      {"water based", "waterborne"},
	"alkyd":        {"oil based", "solvent based"},
	"zinc":         {"zinc rich", "galvanizing"},
	"silicone":     {"heat resistant", "high temperature"},

	// Performance language
	"rust":          {"corrosion", "anti-corrosive", "rust preventive"},
	"corrosion":     {"rust", "anti-corrosive"},
	"waterproof":    {"water resistant", "moisture barrier"},
	"fireproof":     {"fire retardant", "intumescent", "flame resistant"},
	"antifouling":   {"anti-fouling", "marine growth"},
	"heat":          {"high temperature", "heat resistant"},
	"uv":            {"ultraviolet", "weathering", "uv resistant"},
	"glossy":        {"gloss", "high gloss"},
	"matte":         {"matt", "flat", "low sheen"},
	"satin":         {"semi-gloss", "eggshell"},
	"fast":          {"quick dry", "rapid cure"},

	// Substrates
	"metal":     {"steel", "iron", "ferrous"},
	"steel":     {"metal", "carbon steel", "structural steel"},
	"aluminium": {"aluminum", "light metal"},
	"aluminum":  {"aluminium", "light metal"},
	"wood":      {"timber", "wooden"},
	"concrete":  {"masonry", "cement", "cementitious"},
	"floor":     {"flooring", "deck"},
	"marine":    {"boat", "hull", "offshore"},
	"roof":      {"roofing"},
	"tank":      {"tank lining", "containment"},
	"pipe":      {"pipeline", "piping"},
}

// technicalPhrases are multi-word domain phrases detected before word
// splitting, longest first so the most specific phrase wins.
var technicalPhrases = []string{
	"two component epoxy",
	"zinc rich primer",
	"high build epoxy",
	"anti corrosive primer",
	"heat resistant coating",
	"fire retardant paint",
	"water based paint",
	"oil based paint",
	"direct to metal",
	"quick dry enamel",
	"clear coat",
	"top coat",
	"base coat",
	"spray paint",
	"floor coating",
	"tank lining",
	"wood stain",
	"etch primer",
	"high gloss",
	"semi gloss",
	"low voc",
}

// stopWords are dropped during expansion; three letters or fewer are
// dropped separately by the length rule.
var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "also": {}, "and": {}, "any": {}, "are": {},
	"available": {}, "been": {}, "best": {}, "between": {}, "can": {},
	"could": {}, "does": {}, "find": {}, "for": {}, "from": {}, "give": {},
	"have": {}, "i": {}, "is": {}, "it": {}, "just": {}, "like": {},
	"list": {}, "looking": {}, "me": {}, "more": {}, "much": {},
	"need": {}, "not": {}, "please": {}, "product": {}, "products": {},
	"recommend": {}, "should": {}, "show": {}, "some": {}, "something": {},
	"suggest": {}, "tell": {}, "that": {}, "the": {}, "their": {},
	"there": {}, "they": {}, "this": {}, "want": {}, "what": {},
	"which": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}
