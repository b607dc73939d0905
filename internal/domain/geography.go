package domain

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// countyCities is the canonical delivery geography: every Romanian county plus
// București, each with the cities the courier network serves. Canonical names
// carry diacritics; lookups fold them away so form input matches either way.
var countyCities = map[string][]string{
	"Alba":            {"Alba Iulia", "Aiud", "Blaj", "Sebeș", "Cugir"},
	"Arad":            {"Arad", "Ineu", "Lipova", "Pecica"},
	"Argeș":           {"Pitești", "Câmpulung", "Curtea de Argeș", "Mioveni"},
	"Bacău":           {"Bacău", "Onești", "Moinești", "Comănești"},
	"Bihor":           {"Oradea", "Salonta", "Marghita", "Beiuș"},
	"Bistrița-Năsăud": {"Bistrița", "Năsăud", "Beclean"},
	"Botoșani":        {"Botoșani", "Dorohoi", "Darabani"},
	"Brașov":          {"Brașov", "Făgăraș", "Săcele", "Codlea", "Râșnov"},
	"Brăila":          {"Brăila", "Ianca", "Însurăței"},
	"București":       {"București"},
	"Buzău":           {"Buzău", "Râmnicu Sărat", "Nehoiu"},
	"Caraș-Severin":   {"Reșița", "Caransebeș", "Bocșa", "Oravița"},
	"Călărași":        {"Călărași", "Oltenița", "Budești"},
	"Cluj":            {"Cluj-Napoca", "Turda", "Dej", "Câmpia Turzii", "Gherla"},
	"Constanța":       {"Constanța", "Mangalia", "Medgidia", "Năvodari", "Cernavodă"},
	"Covasna":         {"Sfântu Gheorghe", "Târgu Secuiesc", "Covasna"},
	"Dâmbovița":       {"Târgoviște", "Moreni", "Pucioasa", "Găești"},
	"Dolj":            {"Craiova", "Băilești", "Calafat", "Filiași"},
	"Galați":          {"Galați", "Tecuci", "Târgu Bujor"},
	"Giurgiu":         {"Giurgiu", "Bolintin-Vale", "Mihăilești"},
	"Gorj":            {"Târgu Jiu", "Motru", "Rovinari"},
	"Harghita":        {"Miercurea Ciuc", "Odorheiu Secuiesc", "Gheorgheni", "Toplița"},
	"Hunedoara":       {"Deva", "Hunedoara", "Petroșani", "Orăștie", "Lupeni"},
	"Ialomița":        {"Slobozia", "Fetești", "Urziceni"},
	"Iași":            {"Iași", "Pașcani", "Târgu Frumos", "Hârlău"},
	"Ilfov":           {"Buftea", "Voluntari", "Otopeni", "Popești-Leordeni", "Bragadiru"},
	"Maramureș":       {"Baia Mare", "Sighetu Marmației", "Borșa", "Vișeu de Sus"},
	"Mehedinți":       {"Drobeta-Turnu Severin", "Orșova", "Strehaia"},
	"Mureș":           {"Târgu Mureș", "Sighișoara", "Reghin", "Târnăveni"},
	"Neamț":           {"Piatra Neamț", "Roman", "Târgu Neamț"},
	"Olt":             {"Slatina", "Caracal", "Balș", "Corabia"},
	"Prahova":         {"Ploiești", "Câmpina", "Băicoi", "Mizil", "Sinaia"},
	"Satu Mare":       {"Satu Mare", "Carei", "Negrești-Oaș"},
	"Sălaj":           {"Zalău", "Șimleu Silvaniei", "Jibou"},
	"Sibiu":           {"Sibiu", "Mediaș", "Cisnădie", "Avrig"},
	"Suceava":         {"Suceava", "Fălticeni", "Rădăuți", "Câmpulung Moldovenesc", "Vatra Dornei"},
	"Teleorman":       {"Alexandria", "Roșiorii de Vede", "Turnu Măgurele"},
	"Timiș":           {"Timișoara", "Lugoj", "Sânnicolau Mare", "Jimbolia"},
	"Tulcea":          {"Tulcea", "Măcin", "Babadag"},
	"Vaslui":          {"Vaslui", "Bârlad", "Huși"},
	"Vâlcea":          {"Râmnicu Vâlcea", "Drăgășani", "Băbeni"},
	"Vrancea":         {"Focșani", "Adjud", "Mărășești"},
}

// foldedCounties maps the folded county name back to its canonical form.
var foldedCounties = func() map[string]string {
	index := make(map[string]string, len(countyCities))
	for county := range countyCities {
		index[FoldName(county)] = county
	}
	return index
}()

// FoldName normalises a place name for comparison: diacritics stripped,
// lower-cased, surrounding whitespace removed.
func FoldName(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Counties returns the canonical county names in alphabetical order.
func Counties() []string {
	names := make([]string, 0, len(countyCities))
	for county := range countyCities {
		names = append(names, county)
	}
	sort.Strings(names)
	return names
}

// CanonicalCounty resolves form input to the canonical county name.
func CanonicalCounty(name string) (string, bool) {
	county, ok := foldedCounties[FoldName(name)]
	return county, ok
}

// IsCounty reports whether the name belongs to the canonical county set.
func IsCounty(name string) bool {
	_, ok := CanonicalCounty(name)
	return ok
}

// CitiesFor returns the served cities of a county, or nil for an unknown
// county.
func CitiesFor(county string) []string {
	canonical, ok := CanonicalCounty(county)
	if !ok {
		return nil
	}
	cities := countyCities[canonical]
	out := make([]string, len(cities))
	copy(out, cities)
	return out
}

// IsCityInCounty reports whether the city belongs to the county's city set.
// Counties with an empty set accept any city; unknown counties accept none.
func IsCityInCounty(county, city string) bool {
	canonical, ok := CanonicalCounty(county)
	if !ok {
		return false
	}
	cities := countyCities[canonical]
	if len(cities) == 0 {
		return strings.TrimSpace(city) != ""
	}
	folded := FoldName(city)
	for _, candidate := range cities {
		if FoldName(candidate) == folded {
			return true
		}
	}
	return false
}
