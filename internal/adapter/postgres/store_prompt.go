package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/prompt"
)

const templateCols = `id, tenant_id, prompt_type, version, is_active, system_prompt, knowledge_base, created_by, created_at`

func scanTemplate(row scannable) (prompt.Template, error) {
	var t prompt.Template
	err := row.Scan(&t.ID, &t.TenantID, &t.PromptType, &t.Version, &t.IsActive,
		&t.SystemPrompt, &t.KnowledgeBase, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

// CreatePromptTemplate publishes a new version: it deactivates the current
// active version of the same type and inserts the successor as active, all
// in one transaction.
func (s *Store) CreatePromptTemplate(ctx context.Context, req prompt.CreateTemplateRequest) (*prompt.Template, error) {
	tid := tenantFromCtx(ctx)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create prompt template: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE prompt_templates SET is_active = FALSE
		 WHERE tenant_id = $1 AND prompt_type = $2 AND is_active`,
		tid, req.PromptType); err != nil {
		return nil, fmt.Errorf("deactivate prior prompt: %w", err)
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO prompt_templates (tenant_id, prompt_type, version, is_active, system_prompt, knowledge_base, created_by)
		 SELECT $1, $2, COALESCE(max(version), 0) + 1, TRUE, $3, $4, $5
		 FROM prompt_templates WHERE tenant_id = $1 AND prompt_type = $2
		 RETURNING `+templateCols,
		tid, req.PromptType, req.SystemPrompt, req.KnowledgeBase, req.CreatedBy)
	t, err := scanTemplate(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create prompt template: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create prompt template: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create prompt template: commit: %w", err)
	}
	return &t, nil
}

func (s *Store) GetActivePrompt(ctx context.Context, pt prompt.Type) (*prompt.Template, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+templateCols+` FROM prompt_templates
		 WHERE tenant_id = $1 AND prompt_type = $2 AND is_active`,
		tenantFromCtx(ctx), pt)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, notFoundWrap(err, "get active prompt %s", pt)
	}
	return &t, nil
}

func (s *Store) ListPromptTemplates(ctx context.Context, pt prompt.Type) ([]prompt.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateCols+` FROM prompt_templates
		 WHERE tenant_id = $1 AND ($2 = '' OR prompt_type = $2)
		 ORDER BY prompt_type, version DESC`,
		tenantFromCtx(ctx), string(pt))
	if err != nil {
		return nil, fmt.Errorf("list prompt templates: %w", err)
	}
	defer rows.Close()

	var templates []prompt.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

const documentCols = `id, tenant_id, title, slug, content, document_type, is_active, created_at, updated_at`

func scanDocument(row scannable) (prompt.Document, error) {
	var d prompt.Document
	err := row.Scan(&d.ID, &d.TenantID, &d.Title, &d.Slug, &d.Content,
		&d.DocumentType, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *Store) CreateKnowledgeDocument(ctx context.Context, req prompt.CreateDocumentRequest) (*prompt.Document, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO knowledge_documents (tenant_id, title, slug, content, document_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+documentCols,
		tenantFromCtx(ctx), req.Title, req.Slug, req.Content, req.DocumentType)
	d, err := scanDocument(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create knowledge document %s: %w", req.Slug, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create knowledge document: %w", err)
	}
	return &d, nil
}

func (s *Store) ListKnowledgeDocuments(ctx context.Context, activeOnly bool) ([]prompt.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM knowledge_documents
		 WHERE tenant_id = $1 AND ($2 = FALSE OR is_active)
		 ORDER BY document_type, slug`,
		tenantFromCtx(ctx), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list knowledge documents: %w", err)
	}
	defer rows.Close()

	var docs []prompt.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
