package publishingcmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/goliatone/go-publisher/internal/tasks"
)

const (
	processArticleMessageType = "publisher.article.process"
	confirmDraftMessageType   = "publisher.draft.confirm"
)

// Image is a named image carried by a process command.
type Image struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// ProcessArticleCommand runs the process phase for one article. When Async
// is set the command returns once the task is created.
type ProcessArticleCommand struct {
	Markdown      string  `json:"markdown"`
	Cover         *Image  `json:"cover,omitempty"`
	ContentImages []Image `json:"content_images,omitempty"`
	Async         bool    `json:"async,omitempty"`
	// Reply receives the task snapshot, including on failure.
	Reply func(tasks.Snapshot) `json:"-"`
}

// Type implements command.Message.
func (ProcessArticleCommand) Type() string { return processArticleMessageType }

func (m ProcessArticleCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Markdown, validation.By(func(any) error {
			if strings.TrimSpace(m.Markdown) == "" {
				return validation.NewError("publisher.article.process.markdown_required", "markdown is required")
			}
			return nil
		})),
		validation.Field(&m.ContentImages, validation.By(func(any) error {
			for _, img := range m.ContentImages {
				if strings.TrimSpace(img.Name) == "" {
					return validation.NewError("publisher.article.process.image_name_required", "every content image needs a name")
				}
				if len(img.Data) == 0 {
					return validation.NewError("publisher.article.process.image_empty", "content image "+img.Name+" is empty")
				}
			}
			return nil
		})),
	)
}

func (m ProcessArticleCommand) request() tasks.ProcessRequest {
	req := tasks.ProcessRequest{Markdown: []byte(m.Markdown)}
	if m.Cover != nil {
		req.Cover = &tasks.Image{Name: m.Cover.Name, Data: m.Cover.Data}
	}
	for _, img := range m.ContentImages {
		req.ContentImages = append(req.ContentImages, tasks.Image{Name: img.Name, Data: img.Data})
	}
	return req
}

// ConfirmDraftCommand runs the confirm phase for a PREVIEW_READY task.
type ConfirmDraftCommand struct {
	TaskID string `json:"task_id"`
	Async  bool   `json:"async,omitempty"`
	Reply  func(tasks.Snapshot) `json:"-"`
}

// Type implements command.Message.
func (ConfirmDraftCommand) Type() string { return confirmDraftMessageType }

func (m ConfirmDraftCommand) Validate() error {
	errs := validation.Errors{}
	if strings.TrimSpace(m.TaskID) == "" {
		errs["task_id"] = validation.NewError("publisher.draft.confirm.task_id_required", "task_id is required")
	} else if _, err := uuid.Parse(strings.TrimSpace(m.TaskID)); err != nil {
		errs["task_id"] = validation.NewError("publisher.draft.confirm.task_id_invalid", "task_id must be a uuid")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
