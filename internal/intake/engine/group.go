package engine

import (
	"annual-reports-workers/internal/intake/render"
	"annual-reports-workers/internal/models"
	"annual-reports-workers/pkg/registry"
)

const fallbackCategory = "other"

// GroupedRequirement is a requirement as shown in one language.
type GroupedRequirement struct {
	DocumentKey string                   `json:"documentKey"`
	TemplateID  string                   `json:"templateId"`
	Type        string                   `json:"type"`
	Title       string                   `json:"title"`
	Status      models.RequirementStatus `json:"status"`
}

type Group struct {
	CategoryID string               `json:"categoryId"`
	Name       string               `json:"name"`
	Emoji      string               `json:"emoji"`
	Order      int                  `json:"order"`
	Client     []GroupedRequirement `json:"client"`
	Spouse     []GroupedRequirement `json:"spouse"`
}

// GroupByCategory groups requirements by category in sort order, splitting
// client and spouse documents. Requirements of unknown categories land in
// "other". Empty categories are omitted.
func GroupByCategory(reg *registry.Registry, reqs []models.DocumentRequirement, lang string, mode render.Mode) []Group {
	byID := map[string]*Group{}
	for _, r := range reqs {
		catID := r.Category
		if _, ok := reg.Category(catID); !ok {
			catID = fallbackCategory
		}
		g, ok := byID[catID]
		if !ok {
			g = &Group{CategoryID: catID, Name: catID, Client: []GroupedRequirement{}, Spouse: []GroupedRequirement{}}
			if c, found := reg.Category(catID); found {
				g.Name = c.Name(lang)
				g.Emoji = c.Emoji
				g.Order = c.SortOrder
			}
			byID[catID] = g
		}

		title := r.TitleHe
		if lang == "en" {
			title = r.TitleEn
		}
		if mode == render.ModePlain {
			title = render.ToPlain(title)
		}
		item := GroupedRequirement{
			DocumentKey: r.DocumentKey,
			TemplateID:  r.TemplateID,
			Type:        r.Type,
			Title:       title,
			Status:      r.Status,
		}
		if r.Person == models.PersonSpouse {
			g.Spouse = append(g.Spouse, item)
		} else {
			g.Client = append(g.Client, item)
		}
	}

	out := make([]Group, 0, len(byID))
	for _, c := range reg.Categories() {
		if g, ok := byID[c.ID]; ok {
			out = append(out, *g)
			delete(byID, c.ID)
		}
	}
	// "other" missing from the registry still has to be emitted.
	if g, ok := byID[fallbackCategory]; ok {
		out = append(out, *g)
	}
	return out
}
