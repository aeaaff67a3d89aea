// Package notion stores submission records in Notion databases.
//
// A target is a database id. Property kinds and option domains come from
// the database itself on every RetrieveSchema call.
package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/dmitrijs2005/photokeeper/internal/server/records"
)

const (
	// Notion rejects select options containing commas or longer than 100 runes.
	maxOptionLen = 100
	// Upper bound of a single rich text object.
	maxTextLen = 2000
)

type databaseAPI interface {
	Get(ctx context.Context, id notionapi.DatabaseID) (*notionapi.Database, error)
	Update(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseUpdateRequest) (*notionapi.Database, error)
}

type pageAPI interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// Store implements records.Store on top of the Notion API.
type Store struct {
	databases databaseAPI
	pages     pageAPI
}

var _ records.Store = (*Store)(nil)

// NewStore returns a store authenticated with an integration token.
func NewStore(token string) *Store {
	client := notionapi.NewClient(notionapi.Token(token))
	return &Store{databases: client.Database, pages: client.Page}
}

func (s *Store) RetrieveSchema(ctx context.Context, target string) (*records.SchemaView, error) {
	db, err := s.databases.Get(ctx, notionapi.DatabaseID(target))
	if err != nil {
		return nil, fmt.Errorf("notion: get database %s: %w", target, err)
	}

	view := &records.SchemaView{Target: target, Properties: make(map[string]records.Property, len(db.Properties))}
	for name, cfg := range db.Properties {
		if cfg == nil {
			continue
		}
		prop := records.Property{Name: name, Kind: kindOf(cfg.GetType()), Native: string(cfg.GetType())}
		if prop.Kind.Enumerated() {
			prop.Options, err = optionNames(cfg)
			if err != nil {
				return nil, fmt.Errorf("notion: read options of %q: %w", name, err)
			}
		}
		view.Properties[name] = prop
	}
	return view, nil
}

// ExtendOptions rewrites the option list of a select or multi-select
// property as the observed options plus the missing ones. Notion replaces
// the list wholesale, so options added concurrently by another writer and
// not observed here may be dropped; their values remain on existing pages.
func (s *Store) ExtendOptions(ctx context.Context, target string, prop records.Property, missing []string) error {
	var names []string
	for _, o := range append(append([]string(nil), prop.Options...), missing...) {
		o = optionName(o)
		if o == "" || contains(names, o) {
			continue
		}
		names = append(names, o)
	}
	opts := make([]notionapi.Option, len(names))
	for i, n := range names {
		opts[i] = notionapi.Option{Name: n}
	}

	var cfg notionapi.PropertyConfig
	switch prop.Kind {
	case records.KindSelect:
		cfg = &notionapi.SelectPropertyConfig{
			Type:   notionapi.PropertyConfigType("select"),
			Select: notionapi.Select{Options: opts},
		}
	case records.KindMultiSelect:
		cfg = &notionapi.MultiSelectPropertyConfig{
			Type:        notionapi.PropertyConfigType("multi_select"),
			MultiSelect: notionapi.Select{Options: opts},
		}
	default:
		return fmt.Errorf("notion: property %q of kind %s has no options", prop.Name, prop.Kind)
	}

	_, err := s.databases.Update(ctx, notionapi.DatabaseID(target), &notionapi.DatabaseUpdateRequest{
		Properties: notionapi.PropertyConfigs{prop.Name: cfg},
	})
	if err != nil {
		return fmt.Errorf("notion: extend options of %q: %w", prop.Name, err)
	}
	return nil
}

func (s *Store) CreateRecord(ctx context.Context, target string, props map[string]records.Value) (string, error) {
	page, err := s.pages.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentType("database_id"),
			DatabaseID: notionapi.DatabaseID(target),
		},
		Properties: render(props),
	})
	if err != nil {
		return "", fmt.Errorf("notion: create page in %s: %w", target, err)
	}
	return string(page.ID), nil
}

func (s *Store) UpdateRecord(ctx context.Context, target, recordID string, props map[string]records.Value) error {
	_, err := s.pages.Update(ctx, notionapi.PageID(recordID), &notionapi.PageUpdateRequest{
		Properties: render(props),
	})
	if err != nil {
		return fmt.Errorf("notion: update page %s in %s: %w", recordID, target, err)
	}
	return nil
}

func kindOf(t notionapi.PropertyConfigType) records.Kind {
	switch string(t) {
	case "title":
		return records.KindTitle
	case "rich_text":
		return records.KindText
	case "number":
		return records.KindNumber
	case "select":
		return records.KindSelect
	case "multi_select":
		return records.KindMultiSelect
	case "url":
		return records.KindURL
	case "email":
		return records.KindEmail
	case "date":
		return records.KindDate
	case "checkbox":
		return records.KindCheckbox
	case "files":
		return records.KindFiles
	case "relation":
		return records.KindRelation
	default:
		return records.KindUnsupported
	}
}

// optionNames reads the option domain through the config's JSON form,
// which is the same for pointer and value configs.
func optionNames(cfg notionapi.PropertyConfig) ([]string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var c struct {
		Select      *optionList `json:"select"`
		MultiSelect *optionList `json:"multi_select"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	list := c.Select
	if list == nil {
		list = c.MultiSelect
	}
	if list == nil {
		return nil, nil
	}
	names := make([]string, 0, len(list.Options))
	for _, o := range list.Options {
		names = append(names, o.Name)
	}
	return names, nil
}

type optionList struct {
	Options []struct {
		Name string `json:"name"`
	} `json:"options"`
}

func optionName(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", " "))
	return truncate(s, maxOptionLen)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
