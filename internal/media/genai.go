package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/types"
	"google.golang.org/genai"
)

const generatedMIMEType = "image/png"

// GenAIGenerator generates flyers with Google's Imagen models.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

func NewGenAIGenerator(ctx context.Context, cfg config.ImageGenConfig) (*GenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("image generation api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GenAIGenerator{client: client, model: cfg.Model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (types.Flyer, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		OutputMIMEType: generatedMIMEType,
	})
	if err != nil {
		return types.Flyer{}, err
	}

	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			continue
		}
		contentType := generated.Image.MIMEType
		if contentType == "" {
			contentType = generatedMIMEType
		}
		return types.Flyer{
			Filename:    "generated" + extension(contentType),
			ContentType: contentType,
			Data:        generated.Image.ImageBytes,
		}, nil
	}
	return types.Flyer{}, fmt.Errorf("image generation returned no image for model %s", g.model)
}
