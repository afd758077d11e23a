package protocol

// Razor specific custom methods. Every request carries the host document uri and the version the
// client believes it is talking about; responses echo the version they were computed against.
const (
	MethodProvideSemanticTokensRange = "razor/provideSemanticTokensRange"
	MethodHover                      = "razor/hover"
	MethodProvideCodeActions         = "razor/provideCodeActions"
	MethodResolveCodeActions         = "razor/resolveCodeActions"
	MethodMapToDocumentRanges        = "razor/mapToDocumentRanges"
	MethodMapToDocumentEdits         = "razor/mapToDocumentEdits"
	MethodUpdateCSharpBuffer         = "razor/updateCSharpBuffer"
	MethodUpdateHTMLBuffer           = "razor/updateHtmlBuffer"
	MethodGeneratedDocument          = "razor/generatedDocument"

	// Requests the server sends back to the client when it delegates to the embedded C# language service.
	MethodDelegatedCSharpSemanticTokens = "razor/csharp/semanticTokens"
	MethodDelegatedCSharpHover          = "razor/csharp/hover"
	MethodDelegatedCSharpCodeActions    = "razor/csharp/codeActions"
	MethodDelegatedCSharpResolve        = "razor/csharp/resolveCodeAction"
)

type RazorLanguageKind int

const (
	LanguageKindCSharp RazorLanguageKind = 1
	LanguageKindHTML   RazorLanguageKind = 2
	LanguageKindRazor  RazorLanguageKind = 3
)

func (k RazorLanguageKind) String() string {
	switch k {
	case LanguageKindCSharp:
		return "csharp"
	case LanguageKindHTML:
		return "html"
	case LanguageKindRazor:
		return "razor"
	default:
		return "unknown"
	}
}

type ProvideSemanticTokensRangeParams struct {
	TextDocument                TextDocumentIdentifier `json:"textDocument"`
	RequiredHostDocumentVersion int32                  `json:"requiredHostDocumentVersion"`
	Range                       Range                  `json:"range"`
	ColorBackground             bool                   `json:"colorBackground,omitempty"`
}

type ProvideSemanticTokensResponse struct {
	Tokens                  []uint32 `json:"tokens"`
	HostDocumentSyncVersion int32    `json:"hostDocumentSyncVersion"`
}

type RazorHoverParams struct {
	TextDocument        TextDocumentIdentifier `json:"textDocument"`
	HostDocumentVersion int32                  `json:"hostDocumentVersion"`
	Position            Position               `json:"position"`
}

type MapToDocumentRangesParams struct {
	Kind             RazorLanguageKind `json:"kind"`
	RazorDocumentURI DocumentURI       `json:"razorDocumentUri"`
	ProjectedRanges  []Range           `json:"projectedRanges"`
}

type MapToDocumentRangesResponse struct {
	Ranges              []Range `json:"ranges"`
	HostDocumentVersion int32   `json:"hostDocumentVersion"`
}

type MapToDocumentEditsParams struct {
	Kind             RazorLanguageKind `json:"kind"`
	RazorDocumentURI DocumentURI       `json:"razorDocumentUri"`
	ProjectedEdits   []TextEdit        `json:"projectedEdits"`
}

type MapToDocumentEditsResponse struct {
	Edits               []TextEdit `json:"edits"`
	HostDocumentVersion int32      `json:"hostDocumentVersion"`
}

type RazorCodeActionParams struct {
	TextDocument        TextDocumentIdentifier `json:"textDocument"`
	HostDocumentVersion int32                  `json:"hostDocumentVersion"`
	Range               Range                  `json:"range"`
	Context             CodeActionContext      `json:"context"`
}

// RazorCodeActionData is attached to every code action the server hands out so that resolution
// can find its way back to the owning document and language.
type RazorCodeActionData struct {
	URI      DocumentURI       `json:"uri"`
	Version  int32             `json:"version"`
	Language RazorLanguageKind `json:"language"`
	Inner    any               `json:"inner,omitempty"`
}

type RazorResolveCodeActionParams struct {
	CodeAction CodeAction `json:"codeAction"`
}

type BufferChange struct {
	Span    TextSpanDTO `json:"span"`
	NewText string      `json:"newText"`
}

type TextSpanDTO struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

type UpdateBufferRequest struct {
	HostDocumentFilePath string         `json:"hostDocumentFilePath"`
	HostDocumentVersion  int32          `json:"hostDocumentVersion"`
	PreviousWasEmpty     bool           `json:"previousWasEmpty"`
	Changes              []BufferChange `json:"changes"`
}

type GeneratedDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type SourceMappingDTO struct {
	OriginalStart   int `json:"originalStart"`
	OriginalLength  int `json:"originalLength"`
	GeneratedStart  int `json:"generatedStart"`
	GeneratedLength int `json:"generatedLength"`
}

type GeneratedDocumentResponse struct {
	HostDocumentVersion int32              `json:"hostDocumentVersion"`
	CSharp              string             `json:"csharp"`
	HTML                string             `json:"html"`
	Mappings            []SourceMappingDTO `json:"mappings"`
	Diagnostics         []Diagnostic       `json:"diagnostics"`
}

// Delegated requests, server to client.

type DelegatedSemanticTokensParams struct {
	HostDocumentURI     DocumentURI `json:"hostDocumentUri"`
	HostDocumentVersion int32       `json:"hostDocumentVersion"`
	Ranges              []Range     `json:"ranges"`
}

// Delegated responses carry the host document version of the C# buffer they were computed on. It
// trails the server's version while a buffer update is still in flight.

type DelegatedSemanticTokensResponse struct {
	Tokens                  []uint32 `json:"tokens"`
	HostDocumentSyncVersion int32    `json:"hostDocumentSyncVersion"`
}

type DelegatedHoverResponse struct {
	Hover
	HostDocumentSyncVersion int32 `json:"hostDocumentSyncVersion"`
}

type DelegatedResolveResponse struct {
	CodeAction
	HostDocumentSyncVersion int32 `json:"hostDocumentSyncVersion"`
}

type DelegatedPositionParams struct {
	HostDocumentURI     DocumentURI `json:"hostDocumentUri"`
	HostDocumentVersion int32       `json:"hostDocumentVersion"`
	ProjectedPosition   Position    `json:"projectedPosition"`
}

type DelegatedCodeActionParams struct {
	HostDocumentURI     DocumentURI       `json:"hostDocumentUri"`
	HostDocumentVersion int32             `json:"hostDocumentVersion"`
	ProjectedRange      Range             `json:"projectedRange"`
	Context             CodeActionContext `json:"context"`
}

type DelegatedResolveParams struct {
	HostDocumentURI     DocumentURI `json:"hostDocumentUri"`
	HostDocumentVersion int32       `json:"hostDocumentVersion"`
	CodeAction          CodeAction  `json:"codeAction"`
}
