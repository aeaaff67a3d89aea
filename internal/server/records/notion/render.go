package notion

import (
	"github.com/jomei/notionapi"

	"github.com/dmitrijs2005/photokeeper/internal/server/records"
)

func render(props map[string]records.Value) notionapi.Properties {
	out := make(notionapi.Properties, len(props))
	for name, v := range props {
		if p := property(v); p != nil {
			out[name] = p
		}
	}
	return out
}

func property(v records.Value) notionapi.Property {
	switch v.Kind {
	case records.KindTitle:
		return notionapi.TitleProperty{Title: richText(v.Text)}
	case records.KindText:
		return notionapi.RichTextProperty{RichText: richText(v.Text)}
	case records.KindNumber:
		return notionapi.NumberProperty{Number: v.Number}
	case records.KindSelect:
		if len(v.Options) == 0 {
			return nil
		}
		return notionapi.SelectProperty{Select: notionapi.Option{Name: optionName(v.Options[0])}}
	case records.KindMultiSelect:
		opts := make([]notionapi.Option, 0, len(v.Options))
		for _, o := range v.Options {
			opts = append(opts, notionapi.Option{Name: optionName(o)})
		}
		return notionapi.MultiSelectProperty{MultiSelect: opts}
	case records.KindURL:
		return notionapi.URLProperty{URL: v.Text}
	case records.KindEmail:
		return notionapi.EmailProperty{Email: v.Text}
	case records.KindCheckbox:
		return notionapi.CheckboxProperty{Checkbox: v.Bool}
	case records.KindDate:
		start := notionapi.Date(v.Time)
		return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
	case records.KindFiles:
		files := make([]notionapi.File, 0, len(v.Files))
		for _, f := range v.Files {
			files = append(files, notionapi.File{
				Name:     truncate(f.Name, maxOptionLen),
				Type:     notionapi.FileType("external"),
				External: &notionapi.FileObject{URL: f.URL},
			})
		}
		return notionapi.FilesProperty{Files: files}
	case records.KindRelation:
		rel := make([]notionapi.Relation, 0, len(v.Relations))
		for _, id := range v.Relations {
			rel = append(rel, notionapi.Relation{ID: notionapi.PageID(id)})
		}
		return notionapi.RelationProperty{Relation: rel}
	}
	return nil
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectType("text"),
		Text: &notionapi.Text{Content: truncate(s, maxTextLen)},
	}}
}
