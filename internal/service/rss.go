package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/pkg/log"
)

const (
	rssItems       = 20
	rssTitle       = "SIVEAL - Global Tech Wire"
	rssDescription = "Latest technology news, AI developments, crypto updates, and enterprise solutions from around the world."
	rssGenerator   = "SIVEAL CMS"
	rssLanguage    = "en-us"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Description   string    `xml:"description"`
	Link          string    `xml:"link"`
	Self          rssSelf   `xml:"atom:link"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	Items         []rssItem `xml:"item"`
}

type rssSelf struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type rssItem struct {
	Title       cdata  `xml:"title"`
	Description cdata  `xml:"description"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category"`
}

// RSSFeed renders the latest published articles as an RSS 2.0 document.
func (s *Service) RSSFeed(ctx context.Context) ([]byte, error) {
	const op = "service/rss/RSSFeed"

	articles, err := s.storage.ListArticles(ctx, models.ArticleFilter{Limit: rssItems})
	if err != nil {
		log.From(ctx).Error("rss_list_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	base := strings.TrimRight(s.cfg.Site.BaseURL, "/")

	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         rssTitle,
			Description:   rssDescription,
			Link:          base,
			Self:          rssSelf{Href: base + "/rss.xml", Rel: "self", Type: "application/rss+xml"},
			Language:      rssLanguage,
			LastBuildDate: rssDate(s.now()),
			Generator:     rssGenerator,
			Items:         make([]rssItem, 0, len(articles)),
		},
	}

	for _, a := range articles {
		link := base + "/article.html?id=" + strconv.FormatInt(a.ID, 10)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       cdata{a.Title},
			Description: cdata{a.Summary},
			Link:        link,
			GUID:        link,
			PubDate:     rssDate(a.Time),
			Category:    a.Category,
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
	}

	return buf.Bytes(), nil
}

func rssDate(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}
