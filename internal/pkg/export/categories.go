package export

import (
	"strings"

	"github.com/riiicil/autometa/pkg/models"
)

// Category resolution prefers what the provider already chose and falls back
// to keyword matching over the metadata text.

type categoryRule struct {
	value string
	words []string
}

// Adobe Stock wants the numeric category id in the CSV
var adobeCategoryRules = []categoryRule{
	{"1", []string{"animal", "wildlife", "dog", "cat", "bird", "fish", "pet", "fox", "horse"}},
	{"2", []string{"architecture", "building", "skyscraper", "bridge", "interior", "house"}},
	{"3", []string{"business", "office", "finance", "meeting", "money", "corporate"}},
	{"4", []string{"drink", "beverage", "coffee", "cocktail", "juice", "wine", "tea"}},
	{"5", []string{"environment", "ecology", "climate", "recycling", "pollution"}},
	{"6", []string{"emotion", "mood", "mind", "meditation", "stress", "happiness"}},
	{"7", []string{"food", "meal", "fruit", "vegetable", "cooking", "cuisine", "dessert"}},
	{"8", []string{"abstract", "pattern", "texture", "background", "graphic", "template", "icon"}},
	{"9", []string{"hobby", "leisure", "game", "craft", "camping", "reading"}},
	{"10", []string{"industry", "factory", "machinery", "construction", "manufacturing"}},
	{"11", []string{"landscape", "mountain", "beach", "sunset", "forest", "desert", "lake"}},
	{"12", []string{"lifestyle", "family", "home", "relaxation", "wellness"}},
	{"13", []string{"people", "portrait", "man", "woman", "child", "crowd", "face"}},
	{"14", []string{"plant", "flower", "tree", "leaf", "garden", "botanical"}},
	{"15", []string{"religion", "culture", "tradition", "festival", "temple", "church"}},
	{"16", []string{"science", "laboratory", "research", "chemistry", "biology", "space"}},
	{"17", []string{"social", "community", "protest", "charity", "diversity"}},
	{"18", []string{"sport", "fitness", "football", "running", "gym", "soccer", "yoga"}},
	{"19", []string{"technology", "computer", "digital", "network", "robot", "software", "data"}},
	{"20", []string{"transport", "car", "vehicle", "train", "airplane", "ship", "traffic"}},
	{"21", []string{"travel", "tourism", "vacation", "landmark", "journey", "adventure"}},
}

var shutterstockCategoryRules = []categoryRule{
	{"Animals/Wildlife", []string{"animal", "wildlife", "dog", "cat", "bird", "fish", "pet", "fox"}},
	{"Abstract", []string{"abstract", "pattern", "geometric", "gradient"}},
	{"Backgrounds/Textures", []string{"background", "texture", "wallpaper", "surface"}},
	{"Buildings/Landmarks", []string{"building", "architecture", "landmark", "city", "bridge"}},
	{"Business/Finance", []string{"business", "finance", "office", "money", "corporate"}},
	{"Education", []string{"education", "school", "student", "learning", "book"}},
	{"Food and drink", []string{"food", "drink", "meal", "coffee", "fruit", "cooking"}},
	{"Healthcare/Medical", []string{"health", "medical", "doctor", "hospital", "medicine"}},
	{"Holidays", []string{"holiday", "christmas", "halloween", "celebration", "easter"}},
	{"Industrial", []string{"industry", "factory", "machinery", "construction"}},
	{"Nature", []string{"nature", "landscape", "forest", "mountain", "flower", "sunset", "snow"}},
	{"People", []string{"people", "portrait", "man", "woman", "child", "family"}},
	{"Religion", []string{"religion", "church", "temple", "faith", "prayer"}},
	{"Science", []string{"science", "laboratory", "research", "space", "chemistry"}},
	{"Signs/Symbols", []string{"sign", "symbol", "icon", "logo", "arrow"}},
	{"Sports/Recreaction", []string{"sport", "fitness", "football", "running", "gym"}},
	{"Technology", []string{"technology", "computer", "digital", "network", "robot", "data"}},
	{"Transportation", []string{"transport", "car", "vehicle", "train", "airplane", "ship"}},
	{"Objects", []string{"object", "tool", "furniture", "equipment"}},
}

// matchCategory scores every rule by keyword hits in the combined text and
// returns the best match, empty when nothing hits.
func matchCategory(rules []categoryRule, text string) string {
	best := ""
	bestScore := 0
	for _, rule := range rules {
		score := 0
		for _, word := range rule.words {
			if strings.Contains(text, word) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = rule.value
		}
	}
	return best
}

func searchText(md *models.Metadata, tags []string) string {
	return strings.ToLower(md.Title + " " + md.Description + " " + strings.Join(tags, " "))
}

// adobeCategoryFor extracts the numeric id from the provider's category
// answer ("1. Animals" style) or falls back to keyword matching.
func adobeCategoryFor(md *models.Metadata, tags []string) string {
	if num := leadingDigits(md.AdobeStockCategory); num != "" {
		return num
	}
	return matchCategory(adobeCategoryRules, searchText(md, tags))
}

// shutterstockCategoryFor validates the provider's answer against the known
// vocabulary or falls back to keyword matching.
func shutterstockCategoryFor(md *models.Metadata, tags []string, video bool) string {
	if cat := strings.TrimSpace(md.ShutterstockCategory); cat != "" {
		for _, rule := range shutterstockCategoryRules {
			if strings.EqualFold(rule.value, cat) {
				if video && rule.value == "Abstract" {
					break // not in the video vocabulary
				}
				return rule.value
			}
		}
	}
	return matchCategory(shutterstockCategoryRules, searchText(md, tags))
}

func leadingDigits(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
