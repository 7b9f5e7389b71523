package vocabulary

// Default returns the built-in furniture vocabulary.
func Default() *Vocabulary {
	v, err := New(DefaultTables())
	if err != nil {
		panic("vocabulary: built-in tables are invalid: " + err.Error())
	}
	return v
}

func DefaultTables() Tables {
	return Tables{
		Synonyms: map[string]string{
			"couch":     "sofa",
			"settee":    "sofa",
			"sectional": "sofa",
			"divan":     "sofa",
			"armchair":  "chair",
			"cot":       "bed",
			"cupboard":  "cabinet",
			"closet":    "wardrobe",
			"bookcase":  "shelf",
			"bookshelf": "shelf",
			"rack":      "shelf",
			"gray":      "grey",
			"wooden":    "wood",
			"timber":    "wood",
		},
		Plurals: map[string]string{
			"sofas":      "sofa",
			"couches":    "couch",
			"settees":    "settee",
			"chairs":     "chair",
			"armchairs":  "armchair",
			"tables":     "table",
			"beds":       "bed",
			"cots":       "cot",
			"cabinets":   "cabinet",
			"cupboards":  "cupboard",
			"almirahs":   "almirah",
			"wardrobes":  "wardrobe",
			"desks":      "desk",
			"shelves":    "shelf",
			"racks":      "rack",
			"stools":     "stool",
			"benches":    "bench",
			"recliners":  "recliner",
			"ottomans":   "ottoman",
			"mattresses": "mattress",
			"dressers":   "dresser",
			"drawers":    "drawer",
			"cushions":   "cushion",
			"seats":      "seat",
			"seaters":    "seater",
			"sets":       "set",
		},
		StopWords: []string{
			"a", "an", "the", "and", "or", "for", "with", "in", "on", "of",
			"to", "by", "at", "from", "my", "me", "i", "show", "buy", "want",
			"need", "some", "set",
		},
		PrimaryTypes: []string{
			"sofa", "chair", "table", "bed", "cabinet", "almirah", "wardrobe",
			"desk", "shelf", "stool", "bench", "recliner", "ottoman",
			"mattress", "dresser",
		},
		Colors: []string{
			"red", "blue", "green", "yellow", "black", "white", "grey", "brown",
			"beige", "cream", "pink", "purple", "orange", "navy", "teal",
			"maroon", "gold", "silver", "ivory", "tan", "mustard",
		},
		Materials: []string{
			"wood", "teak", "sheesham", "oak", "mango", "pine", "walnut",
			"leather", "leatherette", "fabric", "velvet", "linen", "cotton",
			"metal", "steel", "iron", "glass", "marble", "rattan", "cane",
			"plastic", "plywood", "mdf", "engineered",
		},
		ModifierGroups: map[string][]string{
			"wood":    {"solidwood", "hardwood", "teak", "sheesham", "oak", "mango", "pine", "acacia"},
			"leather": {"leatherette", "faux", "pu"},
			"fabric":  {"velvet", "linen", "cotton", "suede", "chenille", "upholstered"},
			"metal":   {"steel", "iron", "aluminium", "wrought"},
			"grey":    {"charcoal", "ash", "slate"},
			"brown":   {"chocolate", "coffee", "walnut", "honey"},
			"white":   {"ivory", "offwhite", "cream"},
			"blue":    {"navy", "teal", "indigo"},
		},
		SeatableTypes: []string{"sofa", "chair", "bench", "recliner"},
		Taxonomy: []TypeProfile{
			{
				Name:       "sofa",
				Primary:    []string{"sofa", "couch", "settee", "sectional", "loveseat"},
				Secondary:  []string{"seater", "lounge", "futon", "chaise", "recliner"},
				Categories: []string{"sofas", "living-room"},
				Attributes: []string{"seater", "material", "color", "style"},
				Boost:      1.2,
				Avoid:      []string{"bed", "table", "wardrobe", "almirah"},
			},
			{
				Name:       "chair",
				Primary:    []string{"chair", "armchair"},
				Secondary:  []string{"seat", "seating", "rocker", "stool", "recliner"},
				Categories: []string{"chairs", "dining", "office"},
				Attributes: []string{"material", "color", "style"},
				Boost:      1.1,
				Avoid:      []string{"sofa", "table", "bed"},
			},
			{
				Name:       "table",
				Primary:    []string{"table"},
				Secondary:  []string{"dining", "coffee", "console", "nightstand", "bedside", "side", "study"},
				Categories: []string{"tables", "dining"},
				Attributes: []string{"material", "size", "seater"},
				Boost:      1.0,
				Avoid:      []string{"chair", "sofa", "bed"},
			},
			{
				Name:       "bed",
				Primary:    []string{"bed", "cot"},
				Secondary:  []string{"mattress", "bunk", "headboard", "king", "queen"},
				Categories: []string{"beds", "bedroom"},
				Attributes: []string{"size", "material"},
				Boost:      1.0,
				Avoid:      []string{"sofa", "table", "chair"},
			},
			{
				Name:       "cabinet",
				Primary:    []string{"cabinet", "cupboard"},
				Secondary:  []string{"sideboard", "drawer", "storage", "dresser"},
				Categories: []string{"storage"},
				Attributes: []string{"material", "color"},
				Boost:      1.0,
				Avoid:      []string{"bed", "sofa", "chair"},
			},
			{
				Name:       "almirah",
				Primary:    []string{"almirah", "wardrobe", "closet"},
				Secondary:  []string{"storage", "hanger", "door"},
				Categories: []string{"storage", "bedroom"},
				Attributes: []string{"material", "size"},
				Boost:      1.0,
				Avoid:      []string{"bed", "sofa", "table"},
			},
			{
				Name:       "desk",
				Primary:    []string{"desk"},
				Secondary:  []string{"workstation", "office", "computer", "writing"},
				Categories: []string{"office", "study"},
				Attributes: []string{"material", "size"},
				Boost:      1.0,
				Avoid:      []string{"bed", "sofa"},
			},
			{
				Name:       "shelf",
				Primary:    []string{"shelf", "bookshelf", "bookcase", "rack"},
				Secondary:  []string{"display", "wall", "books"},
				Categories: []string{"storage", "living-room"},
				Attributes: []string{"material"},
				Boost:      1.0,
				Avoid:      []string{"bed", "sofa"},
			},
			{
				Name:       "bench",
				Primary:    []string{"bench"},
				Secondary:  []string{"entryway", "pew"},
				Categories: []string{"living-room", "outdoor"},
				Attributes: []string{"seater", "material"},
				Boost:      1.0,
				Avoid:      []string{"bed", "table"},
			},
		},
	}
}
