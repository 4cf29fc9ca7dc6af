package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/newstandard/academy/core"
	"github.com/newstandard/academy/core/activity"
	"github.com/newstandard/academy/core/faq"
	"github.com/newstandard/academy/core/user"
)

const (
	documentField   = "document"
	maxDocumentSize = 20 << 20 // 20 MiB
)

var errDocumentTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "document too large")

type faqApi struct {
	svc      faq.Service
	userSvc  user.Service
	recorder activity.Recorder
	validate *validator.Validate
}

func registerFAQAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := faqApi{
		svc:      deps.FAQSvc,
		userSvc:  deps.UserSvc,
		recorder: deps.ActivitySvc,
		validate: deps.Validate,
	}
	manager := contentManagerMiddleware(api.userSvc)

	fg := g.Group("/faqs", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, manager)
	fg.GET("/:id", api.retrieve)
	fg.PUT("/:id", api.update, manager)
	fg.DELETE("/:id", api.destroy, manager)
	fg.PUT("/:id/access", api.setSectionAccess, adminMiddleware(api.userSvc))
	fg.GET("/:id/document", api.document)
	fg.PUT("/:id/document", api.uploadDocument, manager)
	fg.GET("/:id/notes", api.notes)
	fg.POST("/:id/notes", api.addNote)

	ng := g.Group("/faq-notes", jwt)
	ng.PUT("/:id", api.editNote)
	ng.DELETE("/:id", api.destroyNote)
}

func (api *faqApi) record(ctx echo.Context, usr user.User, e activity.Entry) {
	e.UserID = usr.ID
	api.recorder.Record(ctx.Request().Context(), e)
}

func (api *faqApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	faqs, err := api.svc.ListForUser(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing faqs")
	}
	return ctx.JSON(http.StatusOK, faqs)
}

func (api *faqApi) create(ctx echo.Context) error {
	var data faq.NewFAQ
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFAQ")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating faq")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionInsert,
		TableName:   activity.TableFAQs,
		RecordID:    f.ID,
		Description: "created faq " + f.Title,
		NewData:     f,
	})
	return ctx.JSON(http.StatusCreated, f)
}

func (api *faqApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	f, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting faq")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionView,
		TableName:   activity.TableFAQs,
		RecordID:    f.ID,
		Description: "viewed faq " + f.Title,
	})
	return ctx.JSON(http.StatusOK, f)
}

func (api *faqApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.GetRaw(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting faq")
	}

	var data faq.UpdateFAQ
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFAQ")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, err := api.svc.Update(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating faq")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionUpdate,
		TableName:   activity.TableFAQs,
		RecordID:    f.ID,
		Description: "updated faq " + f.Title,
		OldData:     orig,
		NewData:     f,
	})
	return ctx.JSON(http.StatusOK, f)
}

func (api *faqApi) destroy(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.GetRaw(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting faq")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(reqCtx, orig.ID); err != nil {
		return errors.Wrap(err, "deleting faq")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionDelete,
		TableName:   activity.TableFAQs,
		RecordID:    orig.ID,
		Description: "deleted faq " + orig.Title,
		OldData:     orig,
	})
	return ctx.NoContent(http.StatusNoContent)
}

func (api *faqApi) setSectionAccess(ctx echo.Context) error {
	var data faq.SectionAccessRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SectionAccessRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.SetSectionAccess(ctx.Request().Context(), ctx.Param("id"), data.GroupIDs); err != nil {
		return errors.Wrap(err, "setting section access")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *faqApi) uploadDocument(ctx echo.Context) error {
	fh, err := ctx.FormFile(documentField)
	if err != nil {
		return core.NewFieldError(documentField, "a PDF file is required")
	}
	if fh.Size > maxDocumentSize {
		return errDocumentTooLarge
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded document")
	}
	defer func() { _ = file.Close() }()

	f, err := api.svc.UploadDocument(ctx.Request().Context(), ctx.Param("id"), file, fh.Size, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *faqApi) document(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	doc, err := api.svc.Document(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting document")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *faqApi) notes(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notes, err := api.svc.Notes(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing notes")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *faqApi) addNote(ctx echo.Context) error {
	var data faq.NoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NoteRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.AddNote(ctx.Request().Context(), usr, ctx.Param("id"), data.Content)
	if err != nil {
		return errors.Wrap(err, "adding note")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionInsert,
		TableName:   activity.TableFAQNotes,
		RecordID:    n.ID,
		Description: "added a note",
		NewData:     n,
	})
	return ctx.JSON(http.StatusCreated, n)
}

func (api *faqApi) editNote(ctx echo.Context) error {
	var data faq.NoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NoteRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	old, n, err := api.svc.EditNote(ctx.Request().Context(), usr, ctx.Param("id"), data.Content)
	if err != nil {
		return errors.Wrap(err, "editing note")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionUpdate,
		TableName:   activity.TableFAQNotes,
		RecordID:    n.ID,
		Description: "edited a note",
		OldData:     old,
		NewData:     n,
	})
	return ctx.JSON(http.StatusOK, n)
}

func (api *faqApi) destroyNote(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.DeleteNote(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting note")
	}

	api.record(ctx, usr, activity.Entry{
		Action:      activity.ActionDelete,
		TableName:   activity.TableFAQNotes,
		RecordID:    n.ID,
		Description: "deleted a note",
		OldData:     n,
	})
	return ctx.NoContent(http.StatusNoContent)
}
