package cache

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
	"github.com/marketingops/sfmc-inventory/pkg/transport"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// Kind identifies one lazily loaded cache.
type Kind string

const (
	// Folder hierarchies loaded via SOAP DataFolder
	KindAutomationFolders    Kind = "automation_folders"
	KindEmailFolders         Kind = "email_folders"
	KindTemplateFolders      Kind = "template_folders"
	KindTriggeredSendFolders Kind = "triggered_send_folders"
	KindListFolders          Kind = "list_folders"
	KindJourneyFolders       Kind = "journey_folders"

	// Folder hierarchies loaded via REST /email/v1/category
	KindDEFolders           Kind = "de_folders"
	KindQueryFolders        Kind = "query_folders"
	KindScriptFolders       Kind = "script_folders"
	KindImportFolders       Kind = "import_folders"
	KindDataExtractFolders  Kind = "dataextract_folders"
	KindFileTransferFolders Kind = "filetransfer_folders"
	KindFilterFolders       Kind = "filter_folders"

	// Content Builder categories
	KindContentCategories Kind = "content_categories"

	// Definition lookups
	KindQueries        Kind = "queries"
	KindScripts        Kind = "scripts"
	KindEmails         Kind = "emails"
	KindTriggeredSends Kind = "triggered_sends"
)

// soapFolderContentTypes maps SOAP folder kinds to the DataFolder
// ContentType filter value.
var soapFolderContentTypes = map[Kind]string{
	KindAutomationFolders:    "automations",
	KindEmailFolders:         "email",
	KindTemplateFolders:      "template",
	KindTriggeredSendFolders: "triggered_send_definition",
	KindListFolders:          "list",
	KindJourneyFolders:       "journey",
}

// restFolderCategoryTypes maps REST folder kinds to the categoryType filter
// value.
var restFolderCategoryTypes = map[Kind]string{
	KindDEFolders:           "dataextension",
	KindQueryFolders:        "queryactivity",
	KindScriptFolders:       "ssjsactivity",
	KindImportFolders:       "importactivity",
	KindDataExtractFolders:  "dataextractactivity",
	KindFileTransferFolders: "filetransferactivity",
	KindFilterFolders:       "filteractivity",
}

var dataFolderProperties = []string{
	"ID", "Name", "CustomerKey", "ParentFolder.ID", "ContentType",
	"Description", "IsActive", "IsEditable", "AllowChildren",
}

// KindStats describes one loaded cache.
type KindStats struct {
	Entries      int           `json:"entries"`
	LoadDuration time.Duration `json:"loadDurationMs"`
	Hits         int64         `json:"hits"`
	Failed       bool          `json:"failed,omitempty"`
}

type entry struct {
	mu      sync.Mutex
	loaded  bool
	err     error
	folders map[string]types.Folder
	defs    map[string]map[string]any
	crumbs  *BreadcrumbBuilder

	loadDuration time.Duration
	hits         int64
}

// Manager lazily loads and serves folder hierarchies and definition lookup
// tables. Each kind loads at most once per run, including failed loads: a
// cache that failed to load keeps returning the same CACHE_LOAD_FAILED error
// instead of hammering the API.
type Manager struct {
	rest *transport.RestClient
	soap *transport.SoapClient

	mu      sync.Mutex
	entries map[Kind]*entry
}

// NewManager creates a cache manager over the two transports.
func NewManager(rest *transport.RestClient, soap *transport.SoapClient) *Manager {
	return &Manager{
		rest:    rest,
		soap:    soap,
		entries: make(map[Kind]*entry),
	}
}

// Folders returns the folder map for a folder kind, loading on first use.
func (m *Manager) Folders(ctx context.Context, kind Kind) (map[string]types.Folder, error) {
	e, err := m.ensure(ctx, kind)
	if err != nil {
		return nil, err
	}
	return e.folders, nil
}

// Definitions returns the definition map for a definition kind, keyed by ID.
func (m *Manager) Definitions(ctx context.Context, kind Kind) (map[string]map[string]any, error) {
	e, err := m.ensure(ctx, kind)
	if err != nil {
		return nil, err
	}
	return e.defs, nil
}

// Definition looks up a single definition by ID.
func (m *Manager) Definition(ctx context.Context, kind Kind, id string) (map[string]any, bool, error) {
	defs, err := m.Definitions(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	def, ok := defs[id]
	return def, ok, nil
}

// Breadcrumb resolves folderID against a folder kind. Lookup failures yield
// an empty path rather than an error so enrichment can degrade gracefully.
func (m *Manager) Breadcrumb(ctx context.Context, folderID string, kind Kind) string {
	if folderID == "" {
		return ""
	}
	e, err := m.ensure(ctx, kind)
	if err != nil {
		return ""
	}
	return e.crumbs.Build(folderID).Path
}

// Warm loads the given kinds in parallel. All loads are attempted; the first
// error is returned.
func (m *Manager) Warm(ctx context.Context, kinds ...Kind) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			_, err := m.ensure(ctx, kind)
			return err
		})
	}
	return g.Wait()
}

// Stats returns load statistics per kind that has been touched.
func (m *Manager) Stats() map[string]KindStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]KindStats, len(m.entries))
	for kind, e := range m.entries {
		e.mu.Lock()
		n := len(e.folders)
		if n == 0 {
			n = len(e.defs)
		}
		out[string(kind)] = KindStats{
			Entries:      n,
			LoadDuration: e.loadDuration,
			Hits:         e.hits,
			Failed:       e.err != nil,
		}
		e.mu.Unlock()
	}
	return out
}

// MissingFolders reports folder IDs referenced by breadcrumbs but absent
// from their hierarchy, per kind.
func (m *Manager) MissingFolders() map[Kind][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[Kind][]string)
	for kind, e := range m.entries {
		e.mu.Lock()
		if e.crumbs != nil {
			if missing := e.crumbs.Missing(); len(missing) > 0 {
				out[kind] = missing
			}
		}
		e.mu.Unlock()
	}
	return out
}

func (m *Manager) ensure(ctx context.Context, kind Kind) (*entry, error) {
	m.mu.Lock()
	e, ok := m.entries[kind]
	if !ok {
		e = &entry{}
		m.entries[kind] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		e.hits++
		if e.err != nil {
			return nil, e.err
		}
		return e, nil
	}

	start := time.Now()
	err := m.load(ctx, kind, e)
	e.loadDuration = time.Since(start)
	e.loaded = true

	logger := log.WithComponent("cache")
	if err != nil {
		e.err = types.WrapError(types.ErrCacheLoadFailed,
			fmt.Sprintf("failed to load cache %s", kind), err)
		logger.Error().Err(err).Str("kind", string(kind)).Msg("cache load failed")
		return nil, e.err
	}

	n := len(e.folders)
	if n == 0 {
		n = len(e.defs)
	}
	metrics.CacheEntries.WithLabelValues(string(kind)).Set(float64(n))
	metrics.CacheLoadDuration.WithLabelValues(string(kind)).Observe(e.loadDuration.Seconds())
	logger.Debug().Str("kind", string(kind)).Int("entries", n).
		Dur("took", e.loadDuration).Msg("cache loaded")

	if e.folders != nil {
		e.crumbs = NewBreadcrumbBuilder(e.folders)
	}
	return e, nil
}

func (m *Manager) load(ctx context.Context, kind Kind, e *entry) error {
	if contentType, ok := soapFolderContentTypes[kind]; ok {
		folders, err := m.loadSOAPFolders(ctx, contentType)
		e.folders = folders
		return err
	}
	if categoryType, ok := restFolderCategoryTypes[kind]; ok {
		folders, err := m.loadRESTFolders(ctx, "/email/v1/category", categoryType)
		e.folders = folders
		return err
	}

	switch kind {
	case KindContentCategories:
		folders, err := m.loadRESTFolders(ctx, "/asset/v1/content/categories", "")
		e.folders = folders
		return err
	case KindQueries:
		defs, err := m.loadDefinitions(ctx, "/automation/v1/queries", "queryDefinitionId")
		e.defs = defs
		return err
	case KindScripts:
		defs, err := m.loadDefinitions(ctx, "/automation/v1/scripts", "ssjsActivityId")
		e.defs = defs
		return err
	case KindEmails:
		defs, err := m.loadEmails(ctx)
		e.defs = defs
		return err
	case KindTriggeredSends:
		defs, err := m.loadTriggeredSends(ctx)
		e.defs = defs
		return err
	}
	return fmt.Errorf("unknown cache kind %q", kind)
}

func (m *Manager) loadSOAPFolders(ctx context.Context, contentType string) (map[string]types.Folder, error) {
	objects, _, err := m.soap.RetrieveAll(ctx, "DataFolder", dataFolderProperties, &transport.SimpleFilter{
		Property: "ContentType",
		Operator: "equals",
		Value:    contentType,
	})
	if err != nil {
		return nil, err
	}

	folders := make(map[string]types.Folder, len(objects))
	for _, obj := range objects {
		id := soapString(obj["ID"])
		if id == "" {
			continue
		}
		folders[id] = types.Folder{
			ID:          id,
			Name:        soapString(obj["Name"]),
			ParentID:    soapNestedString(obj["ParentFolder"], "ID"),
			ContentType: soapString(obj["ContentType"]),
			Description: soapString(obj["Description"]),
			IsActive:    soapString(obj["IsActive"]) != "false",
			IsEditable:  soapString(obj["IsEditable"]) != "false",
		}
	}
	return folders, nil
}

func (m *Manager) loadRESTFolders(ctx context.Context, path, categoryType string) (map[string]types.Folder, error) {
	params := url.Values{}
	if categoryType != "" {
		params.Set("$filter", fmt.Sprintf("categoryType eq '%s'", categoryType))
	}

	items, _, err := m.rest.GetPaged(ctx, path, params, "items", 500, 100)
	if err != nil {
		return nil, err
	}

	folders := make(map[string]types.Folder, len(items))
	for _, item := range items {
		id := item.Get("id").String()
		if id == "" || id == "0" {
			continue
		}
		contentType := categoryType
		if contentType == "" {
			contentType = item.Get("categoryType").String()
		}
		parentID := item.Get("parentId").String()
		if parentID == "0" {
			parentID = ""
		}
		folders[id] = types.Folder{
			ID:          id,
			Name:        item.Get("name").String(),
			ParentID:    parentID,
			ContentType: contentType,
			Description: item.Get("description").String(),
			IsActive:    true,
			IsEditable:  true,
		}
	}
	return folders, nil
}

func (m *Manager) loadDefinitions(ctx context.Context, path, idKey string) (map[string]map[string]any, error) {
	items, _, err := m.rest.GetPaged(ctx, path, nil, "items", 500, 100)
	if err != nil {
		return nil, err
	}

	defs := make(map[string]map[string]any, len(items))
	for _, item := range items {
		id := item.Get(idKey).String()
		if id == "" {
			continue
		}
		if obj, ok := item.Value().(map[string]any); ok {
			defs[id] = obj
		}
	}
	return defs, nil
}

func (m *Manager) loadEmails(ctx context.Context) (map[string]map[string]any, error) {
	objects, _, err := m.soap.RetrieveAll(ctx, "Email", []string{
		"ID", "Name", "CustomerKey", "Subject", "CategoryID",
		"CreatedDate", "ModifiedDate", "Status",
	}, nil)
	if err != nil {
		return nil, err
	}

	defs := make(map[string]map[string]any, len(objects))
	for _, obj := range objects {
		id := soapString(obj["ID"])
		if id == "" {
			continue
		}
		defs[id] = map[string]any{
			"id":           id,
			"name":         soapString(obj["Name"]),
			"customerKey":  soapString(obj["CustomerKey"]),
			"subject":      soapString(obj["Subject"]),
			"categoryId":   soapString(obj["CategoryID"]),
			"createdDate":  soapString(obj["CreatedDate"]),
			"modifiedDate": soapString(obj["ModifiedDate"]),
			"status":       soapString(obj["Status"]),
		}
	}
	return defs, nil
}

func (m *Manager) loadTriggeredSends(ctx context.Context) (map[string]map[string]any, error) {
	objects, _, err := m.soap.RetrieveAll(ctx, "TriggeredSendDefinition", []string{
		"ObjectID", "Name", "CustomerKey", "Description", "CategoryID",
		"TriggeredSendStatus", "Email.ID", "Email.Name", "CreatedDate", "ModifiedDate",
	}, nil)
	if err != nil {
		return nil, err
	}

	defs := make(map[string]map[string]any, len(objects))
	for _, obj := range objects {
		id := soapString(obj["ObjectID"])
		if id == "" {
			continue
		}
		defs[id] = map[string]any{
			"id":           id,
			"name":         soapString(obj["Name"]),
			"customerKey":  soapString(obj["CustomerKey"]),
			"description":  soapString(obj["Description"]),
			"categoryId":   soapString(obj["CategoryID"]),
			"status":       soapString(obj["TriggeredSendStatus"]),
			"emailId":      soapNestedString(obj["Email"], "ID"),
			"emailName":    soapNestedString(obj["Email"], "Name"),
			"createdDate":  soapString(obj["CreatedDate"]),
			"modifiedDate": soapString(obj["ModifiedDate"]),
		}
	}
	return defs, nil
}

// soapString coerces a decoded SOAP value to string.
func soapString(v any) string {
	s, _ := v.(string)
	return s
}

// soapNestedString reads a child value from a decoded nested element.
func soapNestedString(v any, key string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return soapString(m[key])
}
