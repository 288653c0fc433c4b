package comprehend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscomprehend "github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"bleep/internal/services"
)

// maxDetectBytes keeps each detection request under the provider's
// per-request text size limit, with headroom for multi-byte runes at the
// boundary.
const maxDetectBytes = 4800

// exemptTypes are PII categories left in the transcript. Dates and times
// carry the conversation's structure and are not identifying on their own.
var exemptTypes = map[types.PiiEntityType]struct{}{
	types.PiiEntityTypeDateTime: {},
}

// api is the subset of the Comprehend client the redactor uses.
type api interface {
	DetectPiiEntities(ctx context.Context, params *awscomprehend.DetectPiiEntitiesInput, optFns ...func(*awscomprehend.Options)) (*awscomprehend.DetectPiiEntitiesOutput, error)
}

// Client redacts PII from text using Amazon Comprehend.
type Client struct {
	api api
}

// New wraps a Comprehend client.
func New(client *awscomprehend.Client) *Client {
	return &Client{api: client}
}

func newWithAPI(client api) *Client {
	return &Client{api: client}
}

// Redact replaces detected PII spans with typed markers. Long text is
// split into chunks on whitespace boundaries, redacted chunk by chunk and
// rejoined with single spaces.
func (c *Client) Redact(ctx context.Context, text, languageCode string) (string, error) {
	chunks := chunkText(text, maxDetectBytes)
	redacted := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		output, err := c.api.DetectPiiEntities(ctx, &awscomprehend.DetectPiiEntitiesInput{
			Text:         aws.String(chunk),
			LanguageCode: types.LanguageCode(languageCode),
		})
		if err != nil {
			return "", services.Wrap(services.ClassifyAWS(err), "redaction", "detect", fmt.Sprintf("%d bytes", len(chunk)), err)
		}
		redacted = append(redacted, redactText(chunk, output.Entities))
	}
	return strings.Join(redacted, " "), nil
}

// redactText splices typed markers over entity spans, walking entities from
// the end of the text so earlier offsets stay valid. Offsets are rune
// positions.
func redactText(text string, entities []types.PiiEntity) string {
	if len(entities) == 0 {
		return text
	}

	sorted := make([]types.PiiEntity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool {
		return aws.ToInt32(sorted[i].BeginOffset) > aws.ToInt32(sorted[j].BeginOffset)
	})

	runes := []rune(text)
	for _, entity := range sorted {
		if _, exempt := exemptTypes[entity.Type]; exempt {
			continue
		}
		begin := int(aws.ToInt32(entity.BeginOffset))
		end := int(aws.ToInt32(entity.EndOffset))
		if begin < 0 || end > len(runes) || begin >= end {
			continue
		}
		marker := []rune(fmt.Sprintf("[REDACTED: %s]", entity.Type))
		replaced := make([]rune, 0, len(runes)-(end-begin)+len(marker))
		replaced = append(replaced, runes[:begin]...)
		replaced = append(replaced, marker...)
		replaced = append(replaced, runes[end:]...)
		runes = replaced
	}
	return string(runes)
}

// chunkText splits text into pieces no larger than limit bytes, breaking on
// whitespace. A single word longer than the limit becomes its own chunk
// rather than being split mid-word.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	words := strings.Fields(text)
	var chunks []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if len(chunks) == 0 {
		chunks = []string{text}
	}
	return chunks
}
