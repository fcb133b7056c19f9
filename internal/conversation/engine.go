package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/escalation"
	"github.com/zulandar/watchtower/internal/intent"
	"github.com/zulandar/watchtower/internal/reporting"
	"github.com/zulandar/watchtower/internal/sms"
)

// Classifier labels guard messages. *intent.Classifier satisfies it.
type Classifier interface {
	Classify(ctx context.Context, req intent.Request) intent.Result
	LocateStep(ctx context.Context, proc *catalog.Procedure, message string) int
}

// Escalator hands a guard to a supervisor. *escalation.Escalator satisfies it.
type Escalator interface {
	Escalate(ctx context.Context, e escalation.Escalation) bool
}

// Answerer answers general questions. *knowledge.Answerer satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// classifierHistory is how many recent transcript lines go to the classifier.
const classifierHistory = 6

// defaultHistoryLimit bounds the audit transcript. It sits far above the
// turns any catalog procedure needs, so reports keep the opening message.
const defaultHistoryLimit = 500

// alertTimeout bounds supervisor notification once the guard has a reply.
const alertTimeout = 30 * time.Second

// supervisorRequestIssue labels escalations made with no procedure running.
const supervisorRequestIssue = "Supervisor requested"

// Engine is the conversation state machine. It is safe for concurrent use;
// messages from the same phone are handled one at a time.
type Engine struct {
	store      Store
	catalog    *catalog.Catalog
	classifier Classifier
	sender     sms.Sender
	escalator  Escalator
	recorder   reporting.Recorder
	answerer   Answerer
	log        zerolog.Logger

	threshold    int
	maxRetries   int
	historyLimit int
	imageBaseURL string
	now          func() time.Time

	locks *phoneLocks
}

// EngineOpts configures an Engine.
type EngineOpts struct {
	Store      Store
	Catalog    *catalog.Catalog
	Classifier Classifier
	Sender     sms.Sender
	Escalator  Escalator
	Recorder   reporting.Recorder // defaults to reporting.Nop
	Answerer   Answerer
	Logger     zerolog.Logger

	ConfidenceThreshold int    // default 70
	MaxRetries          int    // default 2
	HistoryLimit        int    // safety cap on transcript turns, default 500
	ImageBaseURL        string // step images are linked as {ImageBaseURL}/{image}
	Now                 func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("conversation: engine: store is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("conversation: engine: catalog is required")
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("conversation: engine: classifier is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("conversation: engine: sender is required")
	}
	if opts.Escalator == nil {
		return nil, fmt.Errorf("conversation: engine: escalator is required")
	}
	if opts.Answerer == nil {
		return nil, fmt.Errorf("conversation: engine: answerer is required")
	}
	e := &Engine{
		store:        opts.Store,
		catalog:      opts.Catalog,
		classifier:   opts.Classifier,
		sender:       opts.Sender,
		escalator:    opts.Escalator,
		recorder:     opts.Recorder,
		answerer:     opts.Answerer,
		log:          opts.Logger,
		threshold:    opts.ConfidenceThreshold,
		maxRetries:   opts.MaxRetries,
		historyLimit: opts.HistoryLimit,
		imageBaseURL: strings.TrimRight(opts.ImageBaseURL, "/"),
		now:          opts.Now,
		locks:        newPhoneLocks(),
	}
	if e.recorder == nil {
		e.recorder = reporting.Nop{}
	}
	if e.threshold <= 0 {
		e.threshold = 70
	}
	if e.maxRetries <= 0 {
		e.maxRetries = 2
	}
	if e.historyLimit <= 0 {
		e.historyLimit = defaultHistoryLimit
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Handle processes one inbound guard message to completion: state
// transition, replies, and any escalation or reporting.
func (e *Engine) Handle(ctx context.Context, msg sms.InboundMessage) error {
	phone := strings.TrimSpace(msg.From)
	if phone == "" {
		return fmt.Errorf("conversation: message has no sender")
	}
	text := strings.TrimSpace(msg.Text)

	unlock := e.locks.lock(phone)
	defer unlock()

	st, ok, err := e.store.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("conversation: load state for %s: %w", phone, err)
	}
	now := e.now()
	if !ok || !st.Active {
		return e.handleIdle(ctx, phone, text, now)
	}

	st.LastActivityAt = now
	st.record(SpeakerGuard, text, now, e.historyLimit)
	log := e.log.With().Str("phone", phone).Str("procedure", st.Procedure.ID).Int("step", st.Step).Logger()

	if intent.IsEscalationRequest(text) {
		log.Info().Msg("explicit escalation request")
		return e.escalate(ctx, st, text)
	}

	if len(st.Menu) > 0 {
		choice, ok := parseChoice(text, st.Menu)
		if !ok {
			log.Debug().Msg("menu reply not understood, resending menu")
			return e.reply(ctx, st, menuText(st.Step, st.Menu), "")
		}
		st.Menu = nil
		log.Info().Str("intent", choice.String()).Msg("menu choice")
		return e.apply(ctx, st, choice, text)
	}

	if cur := st.CurrentStep(); cur != nil && !cur.RequiresConfirmation && e.catalog.Match(text) == nil {
		res := e.classify(ctx, st, text)
		in := intent.Next
		switch res.Intent {
		case intent.Escalate:
			in = intent.Escalate
		case intent.Solved, intent.Skip:
			if res.Confidence >= e.threshold {
				in = res.Intent
			}
		}
		log.Info().Str("classified", res.Intent.String()).Str("intent", in.String()).Msg("informational step")
		return e.apply(ctx, st, in, text)
	}

	res := e.classify(ctx, st, text)
	log.Info().Str("intent", res.Intent.String()).Int("confidence", res.Confidence).Bool("fallback", res.Fallback).Msg("classified")
	if res.Confidence < e.threshold && res.Intent != intent.Clarify && res.Intent != intent.Escalate {
		st.Menu = append([]intent.Intent(nil), lowConfidenceMenu...)
		return e.reply(ctx, st, menuText(st.Step, st.Menu), "")
	}
	return e.apply(ctx, st, res.Intent, text)
}

func (e *Engine) classify(ctx context.Context, st *State, text string) intent.Result {
	history := st.Transcript()
	if len(history) > classifierHistory {
		history = history[len(history)-classifierHistory:]
	}
	return e.classifier.Classify(ctx, intent.Request{
		Message:    text,
		Procedure:  st.Procedure,
		StepNumber: st.Step,
		History:    history,
	})
}

// apply performs the transition for in at the current step.
func (e *Engine) apply(ctx context.Context, st *State, in intent.Intent, text string) error {
	switch in {
	case intent.Solved:
		st.Completed = append(st.Completed, st.Step)
		return e.finish(ctx, st, msgResolved, "guard reported the problem fixed")

	case intent.Clarify:
		st.Menu = append([]intent.Intent(nil), clarifyMenu...)
		return e.reply(ctx, st, menuText(st.Step, st.Menu), "")

	case intent.Skip:
		target := e.classifier.LocateStep(ctx, st.Procedure, text)
		if target > st.Step && target <= len(st.Procedure.Steps) {
			e.log.Info().Str("phone", st.Phone).Int("from", st.Step).Int("to", target).Msg("skipping ahead")
			st.Step = target
			st.Retries = 0
			return e.sendStep(ctx, st)
		}
		return e.advance(ctx, st)

	case intent.Escalate:
		return e.escalate(ctx, st, text)

	case intent.Stuck:
		st.Retries++
		if st.Retries >= e.maxRetries {
			return e.escalate(ctx, st, fmt.Sprintf("stuck %d times at this step: %s", st.Retries, text))
		}
		step := st.CurrentStep()
		return e.reply(ctx, st, repeatMessage(st.Step, step.Instruction), e.imageURL(step.Image))

	default:
		return e.advance(ctx, st)
	}
}

// advance confirms the current step and moves to the next one, completing
// the procedure after the last step.
func (e *Engine) advance(ctx context.Context, st *State) error {
	st.Completed = append(st.Completed, st.Step)
	st.Retries = 0
	st.Step++
	if st.Step > len(st.Procedure.Steps) {
		return e.finish(ctx, st, msgCompleted, "all steps completed")
	}
	return e.sendStep(ctx, st)
}

// sendStep sends the current step. A step marked Escalates hands the guard
// to a supervisor right after its message goes out.
func (e *Engine) sendStep(ctx context.Context, st *State) error {
	step := st.CurrentStep()
	if step.Escalates {
		st.record(SpeakerAssistant, step.Message, e.now(), e.historyLimit)
		if err := e.store.Delete(ctx, st.Phone); err != nil {
			return fmt.Errorf("conversation: delete state for %s: %w", st.Phone, err)
		}
		err := e.send(ctx, st.Phone, step.Message, e.imageURL(step.Image))
		e.notifySupervisor(ctx, st, lastGuardText(st))
		return err
	}
	return e.reply(ctx, st, step.Message, e.imageURL(step.Image))
}

// finish closes a resolved conversation.
func (e *Engine) finish(ctx context.Context, st *State, closing, reason string) error {
	now := e.now()
	st.record(SpeakerAssistant, closing, now, e.historyLimit)
	if err := e.store.Delete(ctx, st.Phone); err != nil {
		return fmt.Errorf("conversation: delete state for %s: %w", st.Phone, err)
	}
	step := st.Step
	if step > len(st.Procedure.Steps) {
		step = len(st.Procedure.Steps)
	}
	e.record(ctx, reporting.Incident{
		StateID:     st.ID,
		Phone:       st.Phone,
		ProcedureID: st.Procedure.ID,
		Issue:       st.Procedure.Title,
		Outcome:     reporting.OutcomeResolved,
		Reason:      reason,
		Step:        step,
		TotalSteps:  len(st.Procedure.Steps),
		Completed:   st.CompletedInstructions(),
		Transcript:  st.Transcript(),
		StartedAt:   st.StartedAt,
		EndedAt:     now,
	})
	e.log.Info().Str("phone", st.Phone).Str("procedure", st.Procedure.ID).Int("completed", len(st.Completed)).Msg("conversation resolved")
	return e.send(ctx, st.Phone, closing, "")
}

// escalate deletes the conversation, tells the guard and then alerts
// supervisors. A failed guard reply still alerts.
func (e *Engine) escalate(ctx context.Context, st *State, reason string) error {
	st.record(SpeakerAssistant, msgEscalated, e.now(), e.historyLimit)
	if err := e.store.Delete(ctx, st.Phone); err != nil {
		return fmt.Errorf("conversation: delete state for %s: %w", st.Phone, err)
	}
	err := e.send(ctx, st.Phone, msgEscalated, "")
	e.notifySupervisor(ctx, st, reason)
	return err
}

func (e *Engine) notifySupervisor(ctx context.Context, st *State, reason string) {
	e.alert(ctx, escalation.Escalation{
		StateID:     st.ID,
		Phone:       st.Phone,
		ProcedureID: st.Procedure.ID,
		Issue:       st.Procedure.Title,
		Step:        st.Step,
		TotalSteps:  len(st.Procedure.Steps),
		Reason:      reason,
		Completed:   st.CompletedInstructions(),
		Transcript:  st.Transcript(),
		StartedAt:   st.StartedAt,
	})
}

// handleIdle handles a message from a guard with no procedure running.
func (e *Engine) handleIdle(ctx context.Context, phone, text string, now time.Time) error {
	log := e.log.With().Str("phone", phone).Logger()

	if proc := e.catalog.Match(text); proc != nil {
		st := &State{
			ID:             uuid.NewString(),
			Phone:          phone,
			Active:         true,
			Procedure:      proc,
			Step:           1,
			StartedAt:      now,
			LastActivityAt: now,
		}
		st.record(SpeakerGuard, text, now, e.historyLimit)
		log.Info().Str("procedure", proc.ID).Str("state", st.ID).Msg("procedure started")
		return e.sendStep(ctx, st)
	}

	if intent.IsEscalationRequest(text) {
		log.Info().Msg("supervisor requested with no procedure running")
		return e.requestSupervisor(ctx, phone, text)
	}

	res := e.classifier.Classify(ctx, intent.Request{Message: text})
	log.Info().Str("intent", res.Intent.String()).Int("confidence", res.Confidence).Bool("fallback", res.Fallback).Msg("classified idle message")
	switch res.Intent {
	case intent.SignOff:
		if err := e.recorder.RecordHandoff(ctx, reporting.Handoff{Phone: phone, Notes: text, At: now}); err != nil {
			log.Error().Err(err).Msg("record shift handoff failed")
		}
		return e.send(ctx, phone, msgHandoffLogged, "")

	case intent.Report:
		if err := e.recorder.RecordReport(ctx, reporting.Report{Phone: phone, Body: text, At: now}); err != nil {
			log.Error().Err(err).Msg("record guard report failed")
		}
		return e.send(ctx, phone, msgReportLogged, "")

	case intent.NeedSupervisor:
		return e.requestSupervisor(ctx, phone, text)
	}

	answer, err := e.answerer.Answer(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("question answering failed")
		answer = msgAnswerFailed
	}
	return e.send(ctx, phone, answer, "")
}

func (e *Engine) requestSupervisor(ctx context.Context, phone, text string) error {
	err := e.send(ctx, phone, msgEscalated, "")
	e.alert(ctx, escalation.Escalation{
		Phone:  phone,
		Issue:  supervisorRequestIssue,
		Reason: text,
	})
	return err
}

// alert escalates on a context detached from the message, so a message
// deadline that expired while the guard was answered does not drop it.
func (e *Engine) alert(ctx context.Context, esc escalation.Escalation) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	e.escalator.Escalate(actx, esc)
}

// reply records an assistant turn, saves the state and sends text.
func (e *Engine) reply(ctx context.Context, st *State, text, imageURL string) error {
	st.record(SpeakerAssistant, text, e.now(), e.historyLimit)
	if err := e.store.Put(ctx, st); err != nil {
		return fmt.Errorf("conversation: save state for %s: %w", st.Phone, err)
	}
	return e.send(ctx, st.Phone, text, imageURL)
}

func (e *Engine) send(ctx context.Context, phone, text, imageURL string) error {
	if err := e.sender.Send(ctx, sms.OutboundMessage{To: phone, Text: text, ImageURL: imageURL}); err != nil {
		return fmt.Errorf("conversation: send to %s: %w", phone, err)
	}
	return nil
}

func (e *Engine) record(ctx context.Context, inc reporting.Incident) {
	if err := e.recorder.RecordIncident(ctx, inc); err != nil {
		e.log.Error().Err(err).Str("phone", inc.Phone).Msg("record incident failed")
	}
}

func (e *Engine) imageURL(image string) string {
	if image == "" || e.imageBaseURL == "" {
		return ""
	}
	return e.imageBaseURL + "/" + image
}

// State returns a copy of the conversation for phone, if one is active.
func (e *Engine) State(ctx context.Context, phone string) (*State, bool, error) {
	return e.store.Get(ctx, phone)
}

// ActiveCount returns the number of conversations in progress.
func (e *Engine) ActiveCount(ctx context.Context) (int, error) {
	states, err := e.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(states), nil
}

// Catalog returns the procedures the engine serves.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

func lastGuardText(st *State) string {
	for i := len(st.History) - 1; i >= 0; i-- {
		if st.History[i].Speaker == SpeakerGuard {
			return st.History[i].Text
		}
	}
	return ""
}
