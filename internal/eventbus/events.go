package eventbus

import (
	"fmt"

	"github.com/devzbysiu/dox-sub000/internal/entity"
)

// Kind is the tag of the bus's tagged event sum.
type Kind string

const (
	NewDocs                  Kind = "NewDocs"
	DocsMoved                 Kind = "DocsMoved"
	ThumbnailMade             Kind = "ThumbnailMade"
	EncryptThumbnail          Kind = "EncryptThumbnail"
	EncryptDocument           Kind = "EncryptDocument"
	ThumbnailEncryptionFailed Kind = "ThumbnailEncryptionFailed"
	DocumentEncryptionFailed  Kind = "DocumentEncryptionFailed"
	ThumbnailRemoved          Kind = "ThumbnailRemoved"
	TextExtracted             Kind = "TextExtracted"
	DataExtracted             Kind = "DataExtracted"
	Indexed                   Kind = "Indexed"
	PipelineFinished          Kind = "PipelineFinished"
)

// Event is the single payload type carried by the bus. Only the fields
// relevant to its Kind are populated; constructors below enforce that.
type Event struct {
	Kind     Kind
	Location entity.Location
	User     entity.User
	Details  []entity.DocDetails
}

func (e Event) String() string {
	return fmt.Sprintf("%s(paths=%d)", e.Kind, e.Location.Len())
}

// Location-only event constructors, one per variant that carries just a
// Location. They are produced and consumed by the watcher, mover,
// thumbnail, extractor and encrypter stages; the indexer consumes none of
// them.

func NewDocsEvent(loc entity.Location) Event { return Event{Kind: NewDocs, Location: loc} }
func DocsMovedEvent(loc entity.Location) Event { return Event{Kind: DocsMoved, Location: loc} }
func ThumbnailMadeEvent(loc entity.Location) Event { return Event{Kind: ThumbnailMade, Location: loc} }
func EncryptThumbnailEvent(loc entity.Location) Event {
	return Event{Kind: EncryptThumbnail, Location: loc}
}
func EncryptDocumentEvent(loc entity.Location) Event {
	return Event{Kind: EncryptDocument, Location: loc}
}
func ThumbnailEncryptionFailedEvent(loc entity.Location) Event {
	return Event{Kind: ThumbnailEncryptionFailed, Location: loc}
}
func DocumentEncryptionFailedEvent(loc entity.Location) Event {
	return Event{Kind: DocumentEncryptionFailed, Location: loc}
}

// ThumbnailRemovedEvent carries no payload.
func ThumbnailRemovedEvent() Event { return Event{Kind: ThumbnailRemoved} }

// TextExtractedEvent carries the owning user plus the extracted details.
func TextExtractedEvent(user entity.User, details []entity.DocDetails) Event {
	return Event{Kind: TextExtracted, User: user, Details: details}
}

// DataExtractedEvent and IndexedEvent both carry just the DocDetails batch.
func DataExtractedEvent(details []entity.DocDetails) Event {
	return Event{Kind: DataExtracted, Details: details}
}
func IndexedEvent(details []entity.DocDetails) Event { return Event{Kind: Indexed, Details: details} }

// PipelineFinishedEvent carries no payload.
func PipelineFinishedEvent() Event { return Event{Kind: PipelineFinished} }
