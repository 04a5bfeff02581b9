package feed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"

	"github.com/umputun/newsclass/pkg/domain"
)

// Parser decodes RSS/Atom documents into raw article records
type Parser struct{}

// NewParser creates a new feed parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes raw feed bytes. Records keep document order, missing elements
// become empty strings. A document that is not well-formed XML, or is not
// an RSS or Atom feed, returns a malformed feed error and no records.
func (p *Parser) Parse(data []byte) ([]domain.RawArticle, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if err := checkWellFormed(data); err != nil {
		return nil, domain.NewError(domain.KindMalformedFeed, "", fmt.Errorf("parse feed: %w", err))
	}

	// gofeed parsers keep state during parsing, new one per call
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewError(domain.KindMalformedFeed, "", fmt.Errorf("parse feed: %w", err))
	}

	records := make([]domain.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		rec := domain.RawArticle{
			Title:       item.Title,
			Content:     item.Description,
			PublishedAt: item.Published,
			SourceURL:   item.Link,
		}
		// atom entries may have only <updated>
		if rec.PublishedAt == "" {
			rec.PublishedAt = item.Updated
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseReader is Parse for a stream, the whole document is read first
func (p *Parser) ParseReader(r io.Reader) ([]domain.RawArticle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.NewError(domain.KindMalformedFeed, "", fmt.Errorf("read feed: %w", err))
	}
	return p.Parse(data)
}

// checkWellFormed walks the whole document with a strict pull parser. gofeed
// itself is lenient and recovers records from broken markup.
func checkWellFormed(data []byte) error {
	parser := xpp.NewXMLPullParser(bytes.NewReader(data), true, charset.NewReaderLabel)
	depth, roots := 0, 0
	for {
		event, err := parser.Next()
		if err != nil {
			return fmt.Errorf("not well-formed xml: %w", err)
		}
		switch event {
		case xpp.EndDocument:
			if roots == 0 {
				return errors.New("no root element")
			}
			return nil
		case xpp.StartTag:
			if depth == 0 {
				if roots > 0 {
					return fmt.Errorf("content after root element: <%s>", parser.Name)
				}
				roots++
			}
			depth++
		case xpp.EndTag:
			depth--
		case xpp.Text:
			if depth == 0 && strings.TrimSpace(parser.Text) != "" {
				return errors.New("text outside of root element")
			}
		}
	}
}
