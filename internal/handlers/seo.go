package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"projectnest/internal/models"
	"projectnest/internal/services"
	"projectnest/internal/utils"
)

const (
	feedItems      = 20
	sitemapPages   = 5 // pages of the largest browse size
	feedExcerptLen = 3
)

type SEOHandler struct {
	projects *services.ProjectService
	siteURL  string
}

func NewSEOHandler(projects *services.ProjectService, siteURL string) *SEOHandler {
	return &SEOHandler{projects: projects, siteURL: siteURL}
}

func (h *SEOHandler) projectURL(p *models.Project) string {
	return fmt.Sprintf("%s/projects/%s", h.siteURL, p.Slug)
}

func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, `User-agent: *
Allow: /

Disallow: /api/
Disallow: /auth/

Sitemap: %s/sitemap.xml
`, h.siteURL)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// SitemapXML lists the home page and the most recent projects.
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{{
			Loc:        h.siteURL + "/",
			LastMod:    time.Now().Format(time.DateOnly),
			ChangeFreq: "daily",
			Priority:   "1.0",
		}},
	}

	for page := 1; page <= sitemapPages; page++ {
		result, err := h.projects.Browse(c.Request.Context(), services.ProjectFilter{Sort: services.SortNew, Page: page, PerPage: 100})
		if err != nil {
			respondError(c, err)
			return
		}
		for i := range result.Items {
			p := &result.Items[i]
			// fresher projects are crawled more often
			freq, priority := "weekly", "0.6"
			if age := time.Since(p.CreatedAt); age < 7*24*time.Hour {
				freq, priority = "daily", "0.8"
			} else if age < 30*24*time.Hour {
				priority = "0.7"
			}
			set.URLs = append(set.URLs, sitemapURL{
				Loc:        h.projectURL(p),
				LastMod:    p.UpdatedAt.Format(time.DateOnly),
				ChangeFreq: freq,
				Priority:   priority,
			})
		}
		if page >= result.TotalPages {
			break
		}
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, xml.Header)
	xml.NewEncoder(c.Writer).Encode(set)
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description cdata    `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Category    string   `xml:"category,omitempty"`
	PubDate     string   `xml:"pubDate"`
	GUID        rssGUID  `xml:"guid"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

// RSSFeed publishes the newest open projects as RSS 2.0.
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	result, err := h.projects.Browse(c.Request.Context(), services.ProjectFilter{
		Statuses: []models.ProjectStatus{models.ProjectOpen},
		Sort:     services.SortNew,
		PerPage:  feedItems,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:         "ProjectNest: new projects",
			Link:          h.siteURL,
			Description:   "Newly opened projects looking for collaborators",
			LastBuildDate: time.Now().Format(time.RFC1123Z),
		},
	}
	for i := range result.Items {
		p := &result.Items[i]
		link := h.projectURL(p)
		body := utils.Excerpt(string(utils.RenderMarkdown(p.Description)), feedExcerptLen)
		body += fmt.Sprintf(`<p><a href="%s">View the project and apply</a></p>`, link)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: cdata{Value: body},
			Author:      p.Owner.Username,
			Category:    p.Category.Name,
			PubDate:     p.CreatedAt.Format(time.RFC1123Z),
			GUID:        rssGUID{Value: link, IsPermaLink: true},
		})
	}

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, xml.Header)
	xml.NewEncoder(c.Writer).Encode(doc)
}
