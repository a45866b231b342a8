package metadata

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// Resolver reads one candidate value for a field. An empty string means absent.
type Resolver func(doc *goquery.Document) string

var (
	titleResolvers = []Resolver{
		MetaProperty("og:title"),
		MetaName("twitter:title"),
		ElementText("title"),
	}
	descriptionResolvers = []Resolver{
		MetaProperty("og:description"),
		MetaName("twitter:description"),
		MetaName("description"),
	}
	imageResolvers = []Resolver{
		MetaProperty("og:image"),
		MetaName("twitter:image"),
		MetaName("twitter:image:src"),
	}
	faviconResolvers = []Resolver{
		LinkRel("icon"),
		LinkRel("shortcut icon"),
		LinkRel("apple-touch-icon"),
	}
)

// MetaProperty reads <meta property="name" content="...">.
func MetaProperty(name string) Resolver {
	return attrOf(fmt.Sprintf(`meta[property=%q]`, name), "content")
}

// MetaName reads <meta name="name" content="...">.
func MetaName(name string) Resolver {
	return attrOf(fmt.Sprintf(`meta[name=%q]`, name), "content")
}

// LinkRel reads <link rel="rel" href="...">.
func LinkRel(rel string) Resolver {
	return attrOf(fmt.Sprintf(`link[rel=%q]`, rel), "href")
}

// ElementText reads the text of the first matching element.
func ElementText(selector string) Resolver {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().Text()
	}
}

func attrOf(selector, attr string) Resolver {
	return func(doc *goquery.Document) string {
		value, _ := doc.Find(selector).First().Attr(attr)
		return value
	}
}

// firstOf returns the first resolver value that is non-empty after trimming.
func firstOf(doc *goquery.Document, resolvers []Resolver) *string {
	for _, resolve := range resolvers {
		if v := portfolio.Optional(resolve(doc)); v != nil {
			return v
		}
	}
	return nil
}
