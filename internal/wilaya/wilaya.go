// Package wilaya holds the static directory of the 58 Algerian wilayas.
// Storefront, admin and carrier all disagree on spelling (diacritics,
// French-era names, Arabic transliterations); the alias table is the single
// seam that absorbs that disagreement. Matching is case-insensitive and
// alias based only, never fuzzy.
package wilaya

import (
	"fmt"
	"strings"
)

// Entry describes one wilaya. Aliases always contain the canonical name.
type Entry struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	NameAr  string   `json:"name_ar"`
	Code    string   `json:"code"`
	Aliases []string `json:"aliases"`
}

const (
	MinID = 1
	MaxID = 58
)

var entries = []Entry{
	{1, "Adrar", "أدرار", "01", []string{"Adrar", "أدرار"}},
	{2, "Chlef", "الشلف", "02", []string{"Chlef", "El Asnam", "Orleansville", "Orléansville", "الشلف"}},
	{3, "Laghouat", "الأغواط", "03", []string{"Laghouat", "الأغواط"}},
	{4, "Oum El Bouaghi", "أم البواقي", "04", []string{"Oum El Bouaghi", "Oum el Bouaghi", "Canrobert", "أم البواقي"}},
	{5, "Batna", "باتنة", "05", []string{"Batna", "باتنة"}},
	{6, "Béjaïa", "بجاية", "06", []string{"Béjaïa", "Bejaia", "Bougie", "Bgayet", "بجاية"}},
	{7, "Biskra", "بسكرة", "07", []string{"Biskra", "بسكرة"}},
	{8, "Béchar", "بشار", "08", []string{"Béchar", "Bechar", "Colomb-Bechar", "Colomb-Béchar", "بشار"}},
	{9, "Blida", "البليدة", "09", []string{"Blida", "البليدة"}},
	{10, "Bouira", "البويرة", "10", []string{"Bouira", "Bouïra", "البويرة"}},
	{11, "Tamanrasset", "تمنراست", "11", []string{"Tamanrasset", "Tamanghasset", "Tamenghest", "تمنراست"}},
	{12, "Tébessa", "تبسة", "12", []string{"Tébessa", "Tebessa", "تبسة"}},
	{13, "Tlemcen", "تلمسان", "13", []string{"Tlemcen", "Tilimsen", "تلمسان"}},
	{14, "Tiaret", "تيارت", "14", []string{"Tiaret", "تيارت"}},
	{15, "Tizi Ouzou", "تيزي وزو", "15", []string{"Tizi Ouzou", "Tizi-Ouzou", "تيزي وزو"}},
	{16, "Alger", "الجزائر", "16", []string{"Alger", "Algiers", "Algier", "El Djazair", "الجزائر", "الجزائر العاصمة"}},
	{17, "Djelfa", "الجلفة", "17", []string{"Djelfa", "الجلفة"}},
	{18, "Jijel", "جيجل", "18", []string{"Jijel", "Djidjelli", "جيجل"}},
	{19, "Sétif", "سطيف", "19", []string{"Sétif", "Setif", "سطيف"}},
	{20, "Saïda", "سعيدة", "20", []string{"Saïda", "Saida", "سعيدة"}},
	{21, "Skikda", "سكيكدة", "21", []string{"Skikda", "Philippeville", "سكيكدة"}},
	{22, "Sidi Bel Abbès", "سيدي بلعباس", "22", []string{"Sidi Bel Abbès", "Sidi Bel Abbes", "Sidi-Bel-Abbes", "سيدي بلعباس"}},
	{23, "Annaba", "عنابة", "23", []string{"Annaba", "Bone", "Bône", "عنابة"}},
	{24, "Guelma", "قالمة", "24", []string{"Guelma", "قالمة"}},
	{25, "Constantine", "قسنطينة", "25", []string{"Constantine", "Qacentina", "قسنطينة"}},
	{26, "Médéa", "المدية", "26", []string{"Médéa", "Medea", "المدية"}},
	{27, "Mostaganem", "مستغانم", "27", []string{"Mostaganem", "مستغانم"}},
	{28, "M'Sila", "المسيلة", "28", []string{"M'Sila", "Msila", "M'sila", "المسيلة"}},
	{29, "Mascara", "معسكر", "29", []string{"Mascara", "Mouaskar", "معسكر"}},
	{30, "Ouargla", "ورقلة", "30", []string{"Ouargla", "Wargla", "ورقلة"}},
	{31, "Oran", "وهران", "31", []string{"Oran", "Wahran", "وهران"}},
	{32, "El Bayadh", "البيض", "32", []string{"El Bayadh", "Géryville", "Geryville", "البيض"}},
	{33, "Illizi", "إليزي", "33", []string{"Illizi", "إليزي"}},
	{34, "Bordj Bou Arréridj", "برج بوعريريج", "34", []string{"Bordj Bou Arréridj", "Bordj Bou Arreridj", "BBA", "برج بوعريريج"}},
	{35, "Boumerdès", "بومرداس", "35", []string{"Boumerdès", "Boumerdes", "بومرداس"}},
	{36, "El Tarf", "الطارف", "36", []string{"El Tarf", "El Taref", "الطارف"}},
	{37, "Tindouf", "تندوف", "37", []string{"Tindouf", "تندوف"}},
	{38, "Tissemsilt", "تيسمسيلت", "38", []string{"Tissemsilt", "تيسمسيلت"}},
	{39, "El Oued", "الوادي", "39", []string{"El Oued", "Oued Souf", "الوادي"}},
	{40, "Khenchela", "خنشلة", "40", []string{"Khenchela", "خنشلة"}},
	{41, "Souk Ahras", "سوق أهراس", "41", []string{"Souk Ahras", "سوق أهراس"}},
	{42, "Tipaza", "تيبازة", "42", []string{"Tipaza", "Tipasa", "تيبازة"}},
	{43, "Mila", "ميلة", "43", []string{"Mila", "ميلة"}},
	{44, "Aïn Defla", "عين الدفلى", "44", []string{"Aïn Defla", "Ain Defla", "عين الدفلى"}},
	{45, "Naâma", "النعامة", "45", []string{"Naâma", "Naama", "النعامة"}},
	{46, "Aïn Témouchent", "عين تموشنت", "46", []string{"Aïn Témouchent", "Ain Temouchent", "عين تموشنت"}},
	{47, "Ghardaïa", "غرداية", "47", []string{"Ghardaïa", "Ghardaia", "غرداية"}},
	{48, "Relizane", "غليزان", "48", []string{"Relizane", "Ghilizane", "غليزان"}},
	{49, "Timimoun", "تيميمون", "49", []string{"Timimoun", "تيميمون"}},
	{50, "Bordj Badji Mokhtar", "برج باجي مختار", "50", []string{"Bordj Badji Mokhtar", "برج باجي مختار"}},
	{51, "Ouled Djellal", "أولاد جلال", "51", []string{"Ouled Djellal", "أولاد جلال"}},
	{52, "Béni Abbès", "بني عباس", "52", []string{"Béni Abbès", "Beni Abbes", "بني عباس"}},
	{53, "In Salah", "عين صالح", "53", []string{"In Salah", "Aïn Salah", "Ain Salah", "عين صالح"}},
	{54, "In Guezzam", "عين قزام", "54", []string{"In Guezzam", "عين قزام"}},
	{55, "Touggourt", "تقرت", "55", []string{"Touggourt", "تقرت"}},
	{56, "Djanet", "جانت", "56", []string{"Djanet", "جانت"}},
	{57, "El M'Ghair", "المغير", "57", []string{"El M'Ghair", "El Meghaier", "El M'Ghaier", "المغير"}},
	{58, "El Menia", "المنيعة", "58", []string{"El Menia", "El Meniaa", "El Golea", "El Goléa", "المنيعة"}},
}

var (
	byID    map[int]*Entry
	byAlias map[string]int
)

func init() {
	byID = make(map[int]*Entry, len(entries))
	byAlias = make(map[string]int)

	for i := range entries {
		e := &entries[i]
		if e.ID < MinID || e.ID > MaxID {
			panic(fmt.Sprintf("wilaya id out of range: %d", e.ID))
		}
		if _, dup := byID[e.ID]; dup {
			panic(fmt.Sprintf("duplicate wilaya id: %d", e.ID))
		}
		byID[e.ID] = e
		for _, alias := range e.Aliases {
			byAlias[normalize(alias)] = e.ID
		}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GetByID returns the entry for the given wilaya id.
func GetByID(id int) (*Entry, bool) {
	e, ok := byID[id]
	return e, ok
}

// GetByName resolves a name to a wilaya using case-insensitive exact alias
// matching. An unmatched name returns ok=false; it is never coerced.
func GetByName(name string) (int, *Entry, bool) {
	id, ok := byAlias[normalize(name)]
	if !ok {
		return 0, nil, false
	}
	return id, byID[id], true
}

// Name returns the canonical name for id, or "" when unknown.
func Name(id int) string {
	if e, ok := byID[id]; ok {
		return e.Name
	}
	return ""
}

// NameArabic returns the Arabic name for id, or "" when unknown.
func NameArabic(id int) string {
	if e, ok := byID[id]; ok {
		return e.NameAr
	}
	return ""
}

// List returns all entries ordered by id.
func List() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// IsValid reports whether id is within 1..58 and has an entry.
func IsValid(id int) bool {
	if id < MinID || id > MaxID {
		return false
	}
	_, ok := byID[id]
	return ok
}
