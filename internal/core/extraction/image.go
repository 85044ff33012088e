package extraction

import (
	"errors"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

type ImageProcessor struct {
	base
}

func NewImageProcessor(client inference.Client, prompt string) *ImageProcessor {
	p := &ImageProcessor{}
	p.base = base{modality: model.ModalityImage, client: client, prompt: prompt, strategy: imageStrategy{}}
	return p
}

type imageStrategy struct{}

func (imageStrategy) payload(seg model.Segment) (inference.Payload, error) {
	if seg.Media.Empty() {
		return inference.Payload{}, errors.New("image segment has no picture")
	}
	return inference.Payload{Media: seg.Media}, nil
}

func (imageStrategy) locator(model.Segment, inference.RawOutput) spanLocator {
	return func(row model.ExtractedEntity) *model.SourceSpan {
		span := &model.SourceSpan{Kind: model.SpanBBox, Unit: unitLabel("region", row.Unit)}
		if len(row.BBox) == 4 && row.BBox[2] > 0 && row.BBox[3] > 0 {
			span.BBox = &model.BBox{X: row.BBox[0], Y: row.BBox[1], Width: row.BBox[2], Height: row.BBox[3]}
		}
		if span.Unit == "" && span.BBox == nil {
			return nil
		}
		return span
	}
}
