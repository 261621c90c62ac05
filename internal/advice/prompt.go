package advice

import (
	"strings"

	"callcopilot/internal/domain"
	"callcopilot/internal/session"
)

const (
	// ManualTrigger is the input sent when the operator asks for advice.
	ManualTrigger = "USER REQUESTS ADVICE"

	// NoMissionCue is published instead of calling the engine while no
	// mission is loaded.
	NoMissionCue = CueTag + " PLEASE SELECT A MISSION FROM THE MENU."

	// NoContext stands in for an empty dossier.
	NoContext = "No prior context provided."

	// MissingKeyError is published at startup when no engine is configured.
	MissingKeyError = "ERROR: NO API KEY. RESTART APP."

	DefaultTemperature = 0.6
)

const scriptPersona = `CONTEXT: LIVE SALES CALL. ROLE: Sales copilot.
OBJECTIVE: Write the EXACT words the operator should say next to advance the MISSION.
Blend the MISSION (the goal) with the CONTEXT (the lead).
INSTRUCTIONS:
   1. Follow the STAGES written in the MISSION.
   2. Read the HISTORY. If the operator has just delivered the opener, move to the next stage.
   3. On an objection, apply the matching IF branch from the MISSION.
   4. Personalize with names and business details from the CONTEXT. Never invent facts.
OUTPUT FORMAT:
1. [NOTE]: Key: Value (one line per new fact about the lead).
2. [CUE]: "Exact words to say."`

const strategyPersona = `CONTEXT: LIVE SALES CALL. ROLE: Coach.
OBJECTIVE: Steer the operator toward the MISSION using the CONTEXT.
LOGIC:
1. Check who the MISSION targets and keep the advice relevant to that audience.
2. Listen to the HISTORY. When the operator is stuck, give a strategic pivot.
OUTPUT FORMAT:
1. [NOTE]: Key: Value (one line per new fact about the lead).
2. [CUE]: One short, direct strategic instruction.`

// Persona returns the behavior block for mode.
func Persona(mode domain.CueMode) string {
	if mode == domain.CueModeStrategy {
		return strategyPersona
	}
	return scriptPersona
}

// Temperatures maps each mode to its sampling temperature.
type Temperatures map[domain.CueMode]float64

func (t Temperatures) For(mode domain.CueMode) float64 {
	if v, ok := t[mode]; ok {
		return v
	}
	return DefaultTemperature
}

// BuildPrompt fills the advisory template from a session snapshot.
func BuildPrompt(snap session.Snapshot, input string, temps Temperatures) domain.Prompt {
	dossier := snap.Dossier
	if strings.TrimSpace(dossier) == "" {
		dossier = NoContext
	}

	var b strings.Builder
	b.WriteString(Persona(snap.Mode))
	b.WriteString("\n")
	b.WriteString("--- MISSION (THE GOAL) ---\n")
	b.WriteString(snap.Mission.Brief)
	b.WriteString("\n\n--- CONTEXT (THE TARGET) ---\n")
	b.WriteString(dossier)
	b.WriteString("\n\n--- CONVERSATION HISTORY ---\n")
	b.WriteString(strings.Join(snap.History, "\n"))
	b.WriteString("\n\n--- CURRENT INPUT ---\n")
	b.WriteString(input)

	return domain.Prompt{
		Instruction: b.String(),
		Temperature: temps.For(snap.Mode),
	}
}
