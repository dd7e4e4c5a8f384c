package provider

import "fmt"

// Quality tiers accepted in Options.Priority. Anything else falls back to
// PriorityDetailed.
const (
	PriorityDetailed = "Detailed"
	PriorityBalanced = "Balanced"
	PriorityLess     = "Less"
)

const adobeStockCategoryList = "1.Animals, 2.Architecture, 3.Business, 4.Drinks, 5.Environment, " +
	"6.Mind, 7.Food, 8.Graphics, 9.Leisure, 10.Industry, 11.Landscapes, 12.Lifestyle, 13.People, " +
	"14.Plants, 15.Religion, 16.Science, 17.Social, 18.Sports, 19.Technology, 20.Transport, 21.Travel"

const shutterstockCategoryListImage = "'Abstract', 'Animals/Wildlife', 'Arts', 'Backgrounds/Textures', " +
	"'Beauty/Fashion', 'Buildings/Landmarks', 'Business/Finance', 'Education', 'Food and drink', " +
	"'Healthcare/Medical', 'Industrial', 'Nature', 'Objects', 'People', 'Religion', 'Science', " +
	"'Signs/Symbols', 'Sports/Recreaction', 'Technology', 'Transportation'"

const shutterstockCategoryListVideo = "'Animals/Wildlife', 'Arts', 'Backgrounds/Textures', " +
	"'Buildings/Landmarks', 'Business/Finance', 'Education', 'Food and drink', 'Healthcare/Medical', " +
	"'Holidays', 'Industrial', 'Nature', 'Objects', 'People', 'Religion', 'Science', 'Signs/Symbols', " +
	"'Sports/Recreaction', 'Technology', 'Transportation'"

const jsonTemplate = `{"title": "", "description": "", "keywords": [], "adobe_stock_category": "", "shutterstock_category": ""}`

// promptTier captures how strict a quality tier is about title/description shape.
type promptTier struct {
	minWords int
	maxChars int
}

func tierFor(priority string) promptTier {
	switch priority {
	case PriorityBalanced:
		return promptTier{minWords: 5, maxChars: 165}
	case PriorityLess:
		return promptTier{minWords: 4, maxChars: 150}
	default:
		return promptTier{minWords: 6, maxChars: 180}
	}
}

// buildPrompt assembles the instruction text sent alongside the images. The
// PNG variant tells the model to ignore the background (transparent assets),
// the video variant covers multi-frame requests, and the keyword limit is
// interpolated so the model does not overshoot the cap.
func buildPrompt(priority string, png, video bool, keywordLimit int) string {
	tier := tierFor(priority)

	intro := "Analyze the entire image and produce production-ready metadata."
	subject := "descriptive"
	switch {
	case video:
		intro = "Analyze all video frames comprehensively and generate detailed video metadata."
		subject = "describe the video content"
	case png:
		intro = "Focus only on the main subject of the image (ignore the background) when generating metadata."
		subject = "describe the main subject only"
	}

	shutterstockList := shutterstockCategoryListImage
	if video {
		shutterstockList = shutterstockCategoryListVideo
	}

	return fmt.Sprintf(
		"You are a stock photography metadata generator. %s\n\n"+
			"Output requirements:\n"+
			"- Title: minimum %d words, maximum %d characters, %s, unique, avoid special characters.\n"+
			"- Description: minimum %d words, maximum %d characters, unique, avoid special characters.\n"+
			"- Keywords: provide up to %d unique single-word keywords relevant to the content (no multi-word phrases).\n"+
			"- Adobe Stock category: choose the number and name from: %s.\n"+
			"- Shutterstock category: choose one from: %s.\n\n"+
			"Return ONLY valid JSON matching this schema exactly (no extra text, comments, or markdown):\n%s",
		intro,
		tier.minWords, tier.maxChars, subject,
		tier.minWords, tier.maxChars,
		keywordLimit,
		adobeStockCategoryList,
		shutterstockList,
		jsonTemplate,
	)
}
