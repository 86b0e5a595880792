package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/catalog"
	"github.com/mrlokans/bookhive/internal/entities"
	"github.com/mrlokans/bookhive/internal/utils"
)

const (
	// pdfFormField is the multipart field carrying an uploaded PDF.
	pdfFormField = "pdfFile"

	// multipartMemory is how much of a multipart body is held in memory
	// before spilling to temp files.
	multipartMemory = 32 << 20
)

// bookJSON is the JSON form of a create or update request. Quantity is
// decoded loosely: numbers and numeric strings are accepted, anything else
// counts as 0.
type bookJSON struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Quantity any    `json:"quantity"`
	Status   string `json:"status"`
}

type BooksController struct {
	catalog    *catalog.Service
	audit      *audit.Service
	maxPDFSize int64
}

func NewBooksController(catalog *catalog.Service, auditor *audit.Service, maxPDFSize int64) *BooksController {
	return &BooksController{
		catalog:    catalog,
		audit:      auditor,
		maxPDFSize: maxPDFSize,
	}
}

// GetAllBooks returns the whole catalog.
// GET /api/books
func (controller *BooksController) GetAllBooks(c *gin.Context) {
	books, err := controller.catalog.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Fetching books")
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetBook returns one book.
// GET /api/books/:id
func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "Fetching book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// CreateBook adds a book or merges it into an existing duplicate.
// POST /api/books
func (controller *BooksController) CreateBook(c *gin.Context) {
	in, ok := controller.bindBookInput(c)
	if !ok {
		return
	}

	result, err := controller.catalog.Create(c.Request.Context(), in)
	if err != nil {
		respondDomainError(c, err, "Adding book")
		return
	}

	if result.Merged {
		controller.audit.LogCatalog(auditActor(c), "book_merge", result.Book.ID, result.Book.Title, map[string]any{"added_quantity": in.Quantity})
		c.JSON(http.StatusOK, MessageResponse{Message: "Book quantity updated", Book: result.Book, Merged: true})
		return
	}

	controller.audit.LogCatalog(auditActor(c), "book_create", result.Book.ID, result.Book.Title, map[string]any{"quantity": in.Quantity, "has_pdf": in.PDF != nil})
	c.JSON(http.StatusCreated, MessageResponse{Message: "New book added", Book: result.Book})
}

// UpdateBook replaces a book's fields. When the new identity collides with
// another book the two are merged.
// PUT /api/books/:id
func (controller *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	in, ok := controller.bindBookInput(c)
	if !ok {
		return
	}

	result, err := controller.catalog.Update(c.Request.Context(), id, in)
	if err != nil {
		respondDomainError(c, err, "Updating book")
		return
	}

	if result.Merged {
		controller.audit.LogCatalog(auditActor(c), "book_merge", result.Book.ID, result.Book.Title, map[string]any{"merged_from": id})
		c.JSON(http.StatusOK, MessageResponse{Message: "Books merged due to duplicate update", Book: result.Book, Merged: true})
		return
	}

	controller.audit.LogCatalog(auditActor(c), "book_update", result.Book.ID, result.Book.Title, nil)
	c.JSON(http.StatusOK, result.Book)
}

// DeleteBook removes a book. Its loans are kept.
// DELETE /api/books/:id
func (controller *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.catalog.Delete(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "Deleting book")
		return
	}

	controller.audit.LogCatalog(auditActor(c), "book_delete", book.ID, book.Title, nil)
	c.JSON(http.StatusOK, MessageResponse{Message: "Book deleted"})
}

// GetPDF streams the stored document inline.
// GET /api/books/:id/pdf
func (controller *BooksController) GetPDF(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	pdf, err := controller.catalog.PDF(c.Request.Context(), id)
	if errors.Is(err, catalog.ErrNoPDF) {
		c.String(http.StatusNotFound, "No PDF found")
		return
	}
	if err != nil {
		respondInternalError(c, err, "Fetching PDF")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", utils.PDFFilename(pdf.Name)))
	c.Data(http.StatusOK, "application/pdf", pdf.Data)
}

// bindBookInput reads a create or update request from JSON, a url-encoded
// form or a multipart form with an optional PDF. On failure it writes the
// response and returns false.
func (controller *BooksController) bindBookInput(c *gin.Context) (catalog.BookInput, bool) {
	var in catalog.BookInput

	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var req bookJSON
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid JSON body")
			return in, false
		}
		in.Title = req.Title
		in.Author = req.Author
		in.Genre = req.Genre
		in.Quantity = quantityFromJSON(req.Quantity)
		in.Status = entities.BookStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		return in, true
	}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				controller.respondTooLarge(c)
				return in, false
			}
			respondBadRequest(c, "Invalid form body")
			return in, false
		}
	}

	in.Title = c.PostForm("title")
	in.Author = c.PostForm("author")
	in.Genre = c.PostForm("genre")
	in.Quantity = catalog.ParseQuantity(c.PostForm("quantity"))
	in.Status = entities.BookStatus(strings.ToLower(strings.TrimSpace(c.PostForm("status"))))

	file, err := c.FormFile(pdfFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return in, true
	case err != nil:
		respondBadRequest(c, "Invalid upload")
		return in, false
	}

	if controller.maxPDFSize > 0 && file.Size > controller.maxPDFSize {
		controller.respondTooLarge(c)
		return in, false
	}

	data, err := readUpload(file)
	if err != nil {
		respondInternalError(c, err, "Reading upload")
		return in, false
	}
	in.PDF = &catalog.PDFUpload{Name: utils.PDFFilename(file.Filename), Data: data}
	return in, true
}

func (controller *BooksController) respondTooLarge(c *gin.Context) {
	respondError(c, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("PDF exceeds the maximum size of %d MB", controller.maxPDFSize>>20))
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// quantityFromJSON applies the loose quantity rule to a decoded JSON value.
func quantityFromJSON(v any) int {
	switch q := v.(type) {
	case float64:
		return catalog.QuantityFromFloat(q)
	case string:
		return catalog.ParseQuantity(q)
	default:
		return 0
	}
}
