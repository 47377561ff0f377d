// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/reelsync/internal/clock"
	"github.com/tomtom215/reelsync/internal/conflict"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/store"
)

// ActionResponse is the per-action result returned to clients.
type ActionResponse struct {
	Success      bool                  `json:"success"`
	LastModified *float64              `json:"last_modified,omitempty"`
	Error        string                `json:"error,omitempty"`
	ErrorCode    string                `json:"error_code,omitempty"`
	Conflict     bool                  `json:"conflict"`
	ServerState  *models.MediaSnapshot `json:"server_state,omitempty"`
}

// BatchResponse holds one result per submitted action, in order.
type BatchResponse struct {
	Results         []ActionResponse `json:"results"`
	ServerTimestamp float64          `json:"server_timestamp"`
}

// Result pairs a response with the events the action emitted.
type Result struct {
	Response ActionResponse
	Events   []models.Event
}

// Processor applies sync actions to the store. It holds no per-user state
// and is safe for concurrent use; concurrent writers to one item are
// arbitrated by the conflict check alone.
type Processor struct {
	store    store.Store
	clock    clock.Clock
	resolver *conflict.Resolver
	newID    func() string
}

// New creates a Processor. A nil resolver uses the default skew grace.
func New(st store.Store, clk clock.Clock, resolver *conflict.Resolver) *Processor {
	if resolver == nil {
		resolver = conflict.NewResolver(conflict.DefaultSkewGrace)
	}
	return &Processor{
		store:    st,
		clock:    clk,
		resolver: resolver,
		newID:    uuid.NewString,
	}
}

// outcome is what a successful dispatch produced.
type outcome struct {
	lastModified float64
	events       []models.Event
}

// ProcessBatch applies every action of batch in order. Each action commits
// or fails on its own; a failure never stops the batch. The returned events
// are deduplicated across the whole batch.
func (p *Processor) ProcessBatch(ctx context.Context, userID string, batch *BatchRequest) (*BatchResponse, []models.Event) {
	metrics.RecordBatch(len(batch.Actions))
	fallback := NormalizeTimestamp(batch.ClientTimestamp)

	results := make([]ActionResponse, 0, len(batch.Actions))
	var events []models.Event
	for _, raw := range batch.Actions {
		res := p.ApplyRaw(ctx, userID, raw, fallback)
		results = append(results, res.Response)
		events = append(events, res.Events...)
	}

	logging.CtxDebug(ctx).
		Int("actions", len(batch.Actions)).
		Int("events", len(events)).
		Msg("Batch processed")

	return &BatchResponse{Results: results, ServerTimestamp: p.clock.Now()}, models.DedupeEvents(events)
}

// ApplyRaw decodes and applies one action. fallback is used when the action
// carries no timestamp of its own.
func (p *Processor) ApplyRaw(ctx context.Context, userID string, raw json.RawMessage, fallback *float64) Result {
	req, err := DecodeRequest(raw)
	if err != nil {
		return p.reject("malformed", err)
	}
	return p.ApplyRequest(ctx, userID, req, fallback)
}

// ApplyRequest parses and applies a decoded request envelope.
func (p *Processor) ApplyRequest(ctx context.Context, userID string, req *Request, fallback *float64) Result {
	action, err := req.Parse()
	if err != nil {
		label := req.Action
		if !Kind(label).Known() {
			label = "unknown"
		}
		return p.reject(label, err)
	}
	if action.Timestamp == nil {
		action.Timestamp = fallback
	}
	return p.Apply(ctx, userID, action)
}

// Apply validates and applies one typed action in its own transaction.
func (p *Processor) Apply(ctx context.Context, userID string, action *Action) Result {
	start := time.Now()
	kind := string(action.Kind)

	if err := validate(action.Payload); err != nil {
		metrics.RecordAction(kind, CodeValidation, time.Since(start))
		return Result{Response: failure(err)}
	}

	now := p.clock.Now()
	var out outcome
	err := p.store.Update(ctx, userID, func(tx store.Tx) error {
		var derr error
		out, derr = p.dispatch(tx, action, now)
		return derr
	})

	if err != nil {
		var conflictErr *ConflictError
		if errors.As(err, &conflictErr) {
			metrics.RecordConflict(kind)
			metrics.RecordAction(kind, CodeConflict, time.Since(start))
			lm := conflictErr.ServerLastModified
			return Result{Response: ActionResponse{
				Success:      false,
				Conflict:     true,
				Error:        ConflictMessage,
				ErrorCode:    CodeConflict,
				LastModified: &lm,
				ServerState:  conflictErr.Snapshot,
			}}
		}

		var coded Coded
		if !errors.As(err, &coded) {
			err = &PersistenceError{Op: "apply " + kind, Err: err}
			logging.CtxErr(ctx, err).Str("action", kind).Msg("Sync action failed")
		}
		metrics.RecordAction(kind, ErrorCode(err), time.Since(start))
		return Result{Response: failure(err)}
	}

	metrics.RecordAction(kind, "success", time.Since(start))
	lm := out.lastModified
	return Result{
		Response: ActionResponse{Success: true, LastModified: &lm},
		Events:   out.events,
	}
}

func (p *Processor) reject(label string, err error) Result {
	metrics.RecordAction(label, ErrorCode(err), 0)
	return Result{Response: failure(err)}
}

func failure(err error) ActionResponse {
	return ActionResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorCode: ErrorCode(err),
	}
}

func (p *Processor) dispatch(tx store.Tx, a *Action, now float64) (outcome, error) {
	switch pl := a.Payload.(type) {
	case *AddRecommendation:
		return p.addRecommendation(tx, pl, a.Timestamp, now)
	case *RemoveRecommendation:
		return p.removeRecommendation(tx, pl, now)
	case *UpdateRecommendationVote:
		return p.updateRecommendationVote(tx, pl, a.Timestamp, now)
	case *MarkWatched:
		return p.markWatched(tx, pl, a.Timestamp, now)
	case *UpdateRating:
		return p.updateRating(tx, pl, a.Timestamp, now)
	case *UpdateStatus:
		return p.updateStatus(tx, pl, a.Timestamp, now)
	case *AddPerson:
		return p.addPerson(tx, pl, now)
	case *UpdatePerson:
		return p.updatePerson(tx, pl.PersonTarget, now, func(person *models.Person) {
			if pl.IsTrusted != nil {
				person.IsTrusted = *pl.IsTrusted
			}
			if pl.Color != nil {
				person.Color = *pl.Color
			}
			if pl.Emoji != nil {
				person.Emoji = optionalString(*pl.Emoji)
			}
		})
	case *UpdatePersonTrust:
		target := pl.PersonTarget
		if target.PersonID != nil {
			target.Name = ""
		}
		return p.updatePerson(tx, target, now, func(person *models.Person) {
			person.IsTrusted = *pl.IsTrusted
		})
	case *DeletePerson:
		return p.deletePerson(tx, pl, now)
	case *AddList:
		return p.addList(tx, pl, now)
	case *UpdateList:
		return p.updateList(tx, pl, now)
	case *DeleteList:
		return p.deleteList(tx, pl, now)
	default:
		return outcome{}, &UnknownActionError{Kind: string(a.Kind)}
	}
}

// loadMovie returns the stored item or a new unsaved one.
func loadMovie(tx store.Tx, imdbID string, mt models.MediaType, now float64) (*models.MediaItem, bool, error) {
	item, err := tx.GetMovie(imdbID)
	switch {
	case err == nil:
		return item, false, nil
	case errors.Is(err, store.ErrNotFound):
		return models.NewMediaItem(imdbID, mt, now), true, nil
	default:
		return nil, false, persist("load movie", err)
	}
}

// checkConflict compares the client baseline to the stored item. A lazily
// created item has no server timestamp and never conflicts.
func (p *Processor) checkConflict(tx store.Tx, item *models.MediaItem, created bool, client *float64) error {
	if created {
		return nil
	}
	server := item.LastModified
	decision := p.resolver.Check(&server, client)
	if !decision.Conflict {
		return nil
	}

	names, err := personNames(tx)
	if err != nil {
		return err
	}
	return &ConflictError{
		ServerLastModified: server,
		Snapshot:           item.Snapshot(names),
	}
}

func personNames(tx store.Tx) (map[int64]string, error) {
	people, err := tx.People(0)
	if err != nil {
		return nil, persist("list people", err)
	}
	names := make(map[int64]string, len(people))
	for _, person := range people {
		names[person.ID] = person.Name
	}
	return names, nil
}

// movieEvent picks movieAdded for new items and movieUpdated otherwise.
func movieEvent(item *models.MediaItem, created bool) models.Event {
	if created {
		return models.MovieEvent(models.EventMovieAdded, item.IMDbID)
	}
	return models.MovieEvent(models.EventMovieUpdated, item.IMDbID)
}

func saveMovie(tx store.Tx, item *models.MediaItem, now float64) error {
	item.LastModified = now
	return persist("save movie", tx.PutMovie(item))
}

// resolvePerson finds the person a recommendation refers to. With create set,
// an unknown name is added as an untrusted person.
func resolvePerson(tx store.Tx, ref PersonRef, create bool, now float64) (*models.Person, bool, error) {
	if ref.PersonID != nil {
		person, err := tx.GetPerson(*ref.PersonID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, &NotFoundError{Entity: "person", ID: formatID(*ref.PersonID)}
		}
		return person, false, persist("load person", err)
	}

	person, err := tx.PersonByName(ref.Person)
	if err == nil {
		return person, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, persist("load person", err)
	}
	if !create {
		return nil, false, &NotFoundError{Entity: "person", ID: ref.Person}
	}

	person = &models.Person{
		Name:         ref.Person,
		Color:        models.DefaultColor,
		LastModified: now,
	}
	if err := tx.PutPerson(person); err != nil {
		return nil, false, persist("create person", err)
	}
	return person, true, nil
}

func (p *Processor) addRecommendation(tx store.Tx, pl *AddRecommendation, ts *float64, now float64) (outcome, error) {
	item, created, err := loadMovie(tx, pl.IMDbID, mediaType(pl.MediaType), now)
	if err != nil {
		return outcome{}, err
	}
	if err := p.checkConflict(tx, item, created, ts); err != nil {
		return outcome{}, err
	}

	person, personCreated, err := resolvePerson(tx, pl.PersonRef, true, now)
	if err != nil {
		return outcome{}, err
	}

	date := now
	if pl.DateRecommended != nil {
		date = *pl.DateRecommended
	}
	item.UpsertRecommendation(models.Recommendation{
		PersonID:        person.ID,
		VoteType:        voteType(pl.VoteType, pl.Vote),
		DateRecommended: date,
	})
	if present(pl.TMDBData) {
		item.TMDBData = append(json.RawMessage(nil), pl.TMDBData...)
	}
	if present(pl.OMDBData) {
		item.OMDBData = append(json.RawMessage(nil), pl.OMDBData...)
	}

	if err := saveMovie(tx, item, now); err != nil {
		return outcome{}, err
	}

	events := []models.Event{movieEvent(item, created)}
	if personCreated {
		events = append(events, models.PeopleEvent())
	}
	return outcome{lastModified: now, events: events}, nil
}

// removeRecommendation is not conflict checked.
func (p *Processor) removeRecommendation(tx store.Tx, pl *RemoveRecommendation, now float64) (outcome, error) {
	item, err := tx.GetMovie(pl.IMDbID)
	if errors.Is(err, store.ErrNotFound) {
		return outcome{lastModified: now}, nil
	}
	if err != nil {
		return outcome{}, persist("load movie", err)
	}

	event := []models.Event{models.MovieEvent(models.EventMovieUpdated, item.IMDbID)}

	person, _, err := resolvePerson(tx, pl.PersonRef, false, now)
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return outcome{lastModified: item.LastModified, events: event}, nil
	}
	if err != nil {
		return outcome{}, err
	}

	if item.RemoveRecommendation(person.ID) {
		if err := saveMovie(tx, item, now); err != nil {
			return outcome{}, err
		}
	}
	return outcome{lastModified: item.LastModified, events: event}, nil
}

func (p *Processor) updateRecommendationVote(tx store.Tx, pl *UpdateRecommendationVote, ts *float64, now float64) (outcome, error) {
	item, err := tx.GetMovie(pl.IMDbID)
	if errors.Is(err, store.ErrNotFound) {
		return outcome{}, &NotFoundError{Entity: "movie", ID: pl.IMDbID}
	}
	if err != nil {
		return outcome{}, persist("load movie", err)
	}
	if err := p.checkConflict(tx, item, false, ts); err != nil {
		return outcome{}, err
	}

	person, _, err := resolvePerson(tx, pl.PersonRef, false, now)
	if err != nil {
		return outcome{}, err
	}
	rec, ok := item.Recommendation(person.ID)
	if !ok {
		return outcome{}, &NotFoundError{Entity: "recommendation", ID: pl.IMDbID + "/" + person.Name}
	}
	rec.VoteType = voteType(pl.VoteType, pl.Vote)

	if err := saveMovie(tx, item, now); err != nil {
		return outcome{}, err
	}
	return outcome{
		lastModified: now,
		events:       []models.Event{models.MovieEvent(models.EventMovieUpdated, item.IMDbID)},
	}, nil
}

func (p *Processor) markWatched(tx store.Tx, pl *MarkWatched, ts *float64, now float64) (outcome, error) {
	item, created, err := loadMovie(tx, pl.IMDbID, mediaType(pl.MediaType), now)
	if err != nil {
		return outcome{}, err
	}
	if err := p.checkConflict(tx, item, created, ts); err != nil {
		return outcome{}, err
	}

	date := now
	if pl.DateWatched != nil {
		date = *pl.DateWatched
	}
	item.WatchEntry = &models.WatchEntry{DateWatched: date, Rating: pl.Rating}
	item.SetStatus(models.StateWatched, nil)

	if err := saveMovie(tx, item, now); err != nil {
		return outcome{}, err
	}
	return outcome{lastModified: now, events: []models.Event{movieEvent(item, created)}}, nil
}

func (p *Processor) updateRating(tx store.Tx, pl *UpdateRating, ts *float64, now float64) (outcome, error) {
	item, err := tx.GetMovie(pl.IMDbID)
	if errors.Is(err, store.ErrNotFound) {
		return outcome{}, &NotFoundError{Entity: "watch entry", ID: pl.IMDbID}
	}
	if err != nil {
		return outcome{}, persist("load movie", err)
	}
	if err := p.checkConflict(tx, item, false, ts); err != nil {
		return outcome{}, err
	}
	if item.WatchEntry == nil {
		return outcome{}, &NotFoundError{Entity: "watch entry", ID: pl.IMDbID}
	}

	item.WatchEntry.Rating = pl.Rating
	if err := saveMovie(tx, item, now); err != nil {
		return outcome{}, err
	}
	return outcome{
		lastModified: now,
		events:       []models.Event{models.MovieEvent(models.EventMovieUpdated, item.IMDbID)},
	}, nil
}

func (p *Processor) updateStatus(tx store.Tx, pl *UpdateStatus, ts *float64, now float64) (outcome, error) {
	item, created, err := loadMovie(tx, pl.IMDbID, mediaType(pl.MediaType), now)
	if err != nil {
		return outcome{}, err
	}
	if err := p.checkConflict(tx, item, created, ts); err != nil {
		return outcome{}, err
	}

	state := models.WatchState(pl.Status)
	if state == models.StateCustom {
		if _, err := tx.GetList(*pl.CustomListID); errors.Is(err, store.ErrNotFound) {
			return outcome{}, &NotFoundError{Entity: "list", ID: *pl.CustomListID}
		} else if err != nil {
			return outcome{}, persist("load list", err)
		}
	}
	item.SetStatus(state, pl.CustomListID)

	if err := saveMovie(tx, item, now); err != nil {
		return outcome{}, err
	}

	event := movieEvent(item, created)
	if state == models.StateDeleted {
		event = models.MovieEvent(models.EventMovieDeleted, item.IMDbID)
	}
	return outcome{lastModified: now, events: []models.Event{event}}, nil
}

func (p *Processor) addPerson(tx store.Tx, pl *AddPerson, now float64) (outcome, error) {
	_, err := tx.PersonByName(pl.Name)
	if err == nil {
		return outcome{lastModified: now}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return outcome{}, persist("load person", err)
	}

	color := pl.Color
	if color == "" {
		color = models.DefaultColor
	}
	person := &models.Person{
		Name:         pl.Name,
		IsTrusted:    pl.IsTrusted,
		Color:        color,
		LastModified: now,
	}
	if pl.Emoji != nil {
		person.Emoji = optionalString(*pl.Emoji)
	}
	if err := tx.PutPerson(person); err != nil {
		return outcome{}, persist("create person", err)
	}
	return outcome{lastModified: now, events: []models.Event{models.PeopleEvent()}}, nil
}

// findPerson resolves an update target by id or name.
func findPerson(tx store.Tx, target PersonTarget) (*models.Person, error) {
	var (
		person *models.Person
		err    error
		id     string
	)
	if target.PersonID != nil {
		id = formatID(*target.PersonID)
		person, err = tx.GetPerson(*target.PersonID)
	} else {
		id = target.Name
		person, err = tx.PersonByName(target.Name)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "person", ID: id}
	}
	return person, persist("load person", err)
}

func (p *Processor) updatePerson(tx store.Tx, target PersonTarget, now float64, patch func(*models.Person)) (outcome, error) {
	person, err := findPerson(tx, target)
	if err != nil {
		return outcome{}, err
	}

	if target.PersonID != nil && target.Name != "" && target.Name != person.Name {
		person.Name = target.Name
	}
	patch(person)
	person.LastModified = now

	if err := tx.PutPerson(person); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return outcome{}, &ValidationError{Err: fmt.Errorf("name %q is already in use", person.Name)}
		}
		return outcome{}, persist("save person", err)
	}
	return outcome{lastModified: now, events: []models.Event{models.PeopleEvent()}}, nil
}

func (p *Processor) deletePerson(tx store.Tx, pl *DeletePerson, now float64) (outcome, error) {
	person, err := findPerson(tx, pl.PersonTarget)
	if err != nil {
		return outcome{}, err
	}

	movies, err := tx.Movies(0)
	if err != nil {
		return outcome{}, persist("list movies", err)
	}
	var events []models.Event
	for _, item := range movies {
		if !item.RemoveRecommendation(person.ID) {
			continue
		}
		if err := saveMovie(tx, item, now); err != nil {
			return outcome{}, err
		}
		events = append(events, models.MovieEvent(models.EventMovieUpdated, item.IMDbID))
	}

	if err := tx.DeletePerson(person.ID); err != nil {
		return outcome{}, persist("delete person", err)
	}
	events = append(events, models.PeopleEvent())
	return outcome{lastModified: now, events: events}, nil
}

func (p *Processor) addList(tx store.Tx, pl *AddList, now float64) (outcome, error) {
	id := pl.ID
	if id == "" {
		id = p.newID()
	}

	list, err := tx.GetList(id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		list = &models.CustomList{ID: id, CreatedAt: now}
	case err != nil:
		return outcome{}, persist("load list", err)
	}

	list.Name = pl.Name
	list.Color = pl.Color
	if list.Color == "" {
		list.Color = models.DefaultColor
	}
	list.Icon = pl.Icon
	if list.Icon == "" {
		list.Icon = models.DefaultListIcon
	}
	list.Position = 0
	if pl.Position != nil {
		list.Position = *pl.Position
	}
	list.LastModified = now

	if err := tx.PutList(list); err != nil {
		return outcome{}, persist("save list", err)
	}
	return outcome{lastModified: now, events: []models.Event{models.ListEvent(id)}}, nil
}

func (p *Processor) updateList(tx store.Tx, pl *UpdateList, now float64) (outcome, error) {
	list, err := tx.GetList(pl.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if pl.Name == nil {
			return outcome{}, &NotFoundError{Entity: "list", ID: pl.ID}
		}
		list = &models.CustomList{
			ID:        pl.ID,
			Color:     models.DefaultColor,
			Icon:      models.DefaultListIcon,
			CreatedAt: now,
		}
	case err != nil:
		return outcome{}, persist("load list", err)
	}

	if pl.Name != nil {
		list.Name = *pl.Name
	}
	if pl.Color != nil {
		list.Color = *pl.Color
	}
	if pl.Icon != nil {
		list.Icon = *pl.Icon
	}
	if pl.Position != nil {
		list.Position = *pl.Position
	}
	list.LastModified = now

	if err := tx.PutList(list); err != nil {
		return outcome{}, persist("save list", err)
	}
	return outcome{lastModified: now, events: []models.Event{models.ListEvent(list.ID)}}, nil
}

// deleteList removes the list and moves every item filed under it back to
// toWatch with the list reference cleared.
func (p *Processor) deleteList(tx store.Tx, pl *DeleteList, now float64) (outcome, error) {
	if _, err := tx.GetList(pl.ID); errors.Is(err, store.ErrNotFound) {
		return outcome{}, &NotFoundError{Entity: "list", ID: pl.ID}
	} else if err != nil {
		return outcome{}, persist("load list", err)
	}

	movies, err := tx.Movies(0)
	if err != nil {
		return outcome{}, persist("list movies", err)
	}
	var events []models.Event
	for _, item := range movies {
		ref := item.Status.CustomListID
		if item.Status.State != models.StateCustom || ref == nil || *ref != pl.ID {
			continue
		}
		item.SetStatus(models.StateToWatch, nil)
		if err := saveMovie(tx, item, now); err != nil {
			return outcome{}, err
		}
		events = append(events, models.MovieEvent(models.EventMovieUpdated, item.IMDbID))
	}

	if err := tx.DeleteList(pl.ID); err != nil {
		return outcome{}, persist("delete list", err)
	}
	events = append(events, models.ListEvent(pl.ID))
	return outcome{lastModified: now, events: events}, nil
}

// persist wraps store failures. Typed processor errors pass through.
func persist(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded Coded
	if errors.As(err, &coded) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// optionalString maps "" to nil.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
