package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Commands the agent can choose from
const (
	CommandGetRiverDataByName = "GetRiverDataByName"
	CommandForecastReach      = "ForecastReach"
	CommandGeneralQuery       = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName      string `json:"command_name" jsonschema_description:"The command to execute: GetRiverDataByName, ForecastReach or GeneralQuery"`
	SerbianRiverName string `json:"serbian_river_name" jsonschema_description:"The name of the river translated into Serbian, if applicable"`
	ReachName        string `json:"reach_name" jsonschema_description:"The name of the forecast reach, if the user asks for a downstream forecast"`
	UserMessage      string `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, supportedRivers, reaches []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
	log    *zap.SugaredLogger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string, logger *zap.SugaredLogger) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
		log:    logger,
	}, nil
}

// SystemPrompt builds the instructions sent with every query.
func SystemPrompt(supportedRivers, reaches []string) string {
	return fmt.Sprintf(`You are a brutally honest, no‑bullshit water information bot—an absolute guru in fly fishing and Balkan rivers, with zero patience for idiots. You love nothing more than knocking back rakia, beer, and blasting turbofalk at full volume while you work.

Your mission is to parse user requests about rivers in Serbia (and the Balkans), dish out fly‑fishing advice and any river data they need—no sugarcoating, no fluff.

Requirements:
- You’re an expert in fly fishing and Balkan rivers; any question outside that, you mock mercilessly.
- You understand Russian, English, and Serbian.
- You reply in the same language the user used, and in the most cutting, direct tone possible.

List of known Serbian rivers: %s

List of forecast reaches (routed downstream flow forecasts): %s

Behavior:
1. If the user clearly wants current data on a specific river from the list:
   - command_name = “GetRiverDataByName”
   - Translate the user’s river name into its proper Serbian form from the list; if it’s missing or dubious, leave serbian_river_name as an empty string.
   - reach_name = ""
   - user_message: a one‑line confirmation in the user’s language, dripping with attitude.
2. If the user asks what the flow will be downstream, when a flood wave arrives, or for a forecast:
   - command_name = “ForecastReach”
   - reach_name: the matching name from the reach list, or "" if none matches.
   - serbian_river_name: the Serbian river name if mentioned, else "".
   - user_message: a one‑line confirmation in the user’s language.
3. If the user isn’t asking for river data or forecasts (greetings, small talk, nonsense):
   - command_name = “GeneralQuery”
   - serbian_river_name = "", reach_name = ""
   - user_message: a blunt reply in their language (“Чё тебе надо?”, “What now?”, “Šta bre hoćeš?”).

Output **strictly** in JSON.`, strings.Join(supportedRivers, ", "), strings.Join(reaches, ", "))
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, supportedRivers, reaches []string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, Serbian river name, reach name and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(supportedRivers, reaches)),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	return ParseAgentResponse(chat.Choices[0].Message.Content, s.log)
}

// ParseAgentResponse decodes the agent's JSON answer.
func ParseAgentResponse(content string, logger *zap.SugaredLogger) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		if logger != nil {
			logger.Errorf("Failed to unmarshal OpenAI response: %s\nRaw response: %s", err, content)
		}
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}
	return &agentResp, nil
}
