package agent

import (
	"context"
	"log/slog"
	"sort"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
)

// PostOriginal generates and posts one original tweet. An empty prompt asks
// for a mood-conditioned tweet with a randomly chosen mood.
//
// Only identify/fetch faults are returned as errors; a failed generation or
// post is logged and reported, and the run ends without retry.
func (o *Orchestrator) PostOriginal(ctx context.Context, prompt string) (rep Report, err error) {
	r, log := o.begin(domain.KindPost)
	defer func() { o.finish(log, r, err); rep = *r }()

	me, err := o.social.IdentifySelf(ctx)
	if err != nil {
		return *r, err
	}
	log = log.With(slog.String("user_id", string(me)))

	gt := domain.GeneratedText{}
	if prompt == "" {
		gt.Mood = o.pickMood()
		prompt = MoodPrompt(o.cfg.MoodPrompt, gt.Mood)
		log = log.With(slog.String("mood", string(gt.Mood)))
	}
	r.Candidates = 1

	gt.Body = o.generate(ctx, prompt)
	if gt.Empty() {
		r.Skipped++
		recordItem(r.Workflow, outcomeEmpty)
		log.Warn("empty generation, skipping post")
		return *r, nil
	}

	text := Truncate(gt.Body, o.cfg.TextLimit)
	id, werr := o.social.Post(ctx, text)
	if werr != nil {
		r.Failed++
		recordItem(r.Workflow, outcomeFailed)
		log.Error("post failed", slog.Any("error", werr))
		return *r, nil
	}

	r.Acted++
	r.ActedIDs = append(r.ActedIDs, id)
	recordItem(r.Workflow, outcomeActed)
	log.Info("posted tweet", slog.String("tweet_id", id), slog.String("text", text))
	o.record(ctx, log, r, domain.KindPost, id)
	o.notify(context.WithoutCancel(ctx), log, "posted tweet", text)
	return *r, nil
}

// ReplyToMentions answers up to limit recent mentions, oldest first,
// skipping any already in the ledger. Each success is recorded before the
// next mention is touched. A failure on one mention does not stop the rest.
func (o *Orchestrator) ReplyToMentions(ctx context.Context, limit int) (rep Report, err error) {
	r, log := o.begin(domain.KindReply)
	defer func() { o.finish(log, r, err); rep = *r }()

	me, err := o.social.IdentifySelf(ctx)
	if err != nil {
		return *r, err
	}
	log = log.With(slog.String("user_id", string(me)))

	mentions, err := o.social.FetchMentions(ctx, me, limit)
	if err != nil {
		return *r, err
	}
	sort.SliceStable(mentions, func(i, j int) bool { return mentions[i].Before(mentions[j]) })
	r.Candidates = len(mentions)

	usernames := make(map[string]string)
	pace := &pacer{o: o}
	for _, m := range mentions {
		mlog := log.With(slog.String("mention_id", m.ID))

		done, err := o.seen(ctx, domain.KindReply, m.ID)
		if err != nil {
			return *r, err
		}
		if done {
			r.Skipped++
			recordItem(r.Workflow, outcomeSkipped)
			mlog.Debug("already replied")
			continue
		}

		username, ok := o.resolveAuthor(ctx, mlog, m, usernames)
		if !ok {
			r.Failed++
			recordItem(r.Workflow, outcomeFailed)
			continue
		}

		generated := o.generate(ctx, TextPrompt(o.cfg.ReplyPrompt, m.Text))
		if generated == "" {
			r.Failed++
			recordItem(r.Workflow, outcomeEmpty)
			mlog.Error("reply generation failed, leaving mention for a later run")
			continue
		}
		text := Truncate(ReplyText(username, generated), o.cfg.TextLimit)

		if err := pace.wait(ctx); err != nil {
			return *r, err
		}
		replyID, werr := o.social.Reply(ctx, text, m.ID)
		if werr != nil {
			r.Failed++
			recordItem(r.Workflow, outcomeFailed)
			mlog.Error("reply failed", slog.Any("error", werr))
			continue
		}

		r.Acted++
		r.ActedIDs = append(r.ActedIDs, m.ID)
		recordItem(r.Workflow, outcomeActed)
		mlog.Info("replied to mention", slog.String("author", username), slog.String("reply_id", replyID))
		o.record(ctx, mlog, r, domain.KindReply, m.ID)
		pace.succeeded()
	}
	return *r, nil
}

// resolveAuthor returns the mention author's username, looking it up once
// per author when the fetch did not include it.
func (o *Orchestrator) resolveAuthor(ctx context.Context, log *slog.Logger, m domain.CandidateItem, cache map[string]string) (string, bool) {
	if m.AuthorUsername != "" {
		return m.AuthorUsername, true
	}
	if m.AuthorID == "" {
		log.Error("mention has no author, cannot address reply")
		return "", false
	}
	if name, ok := cache[m.AuthorID]; ok {
		return name, true
	}
	name, err := o.social.LookupUsername(ctx, m.AuthorID)
	if err != nil {
		log.Error("author lookup failed", slog.String("author_id", m.AuthorID), slog.Any("error", err))
		return "", false
	}
	cache[m.AuthorID] = name
	return name, true
}

// quoteDedupeWindow is how many search results a deduplicating quote run
// considers. It matches the smallest page the search endpoint returns.
const quoteDedupeWindow = 10

// QuoteTweet quotes the first search result for query (the configured quote
// query when empty) with generated commentary. With quote dedupe enabled
// the first of at least quoteDedupeWindow results not yet in the ledger is
// used and recorded on success; otherwise the same tweet may be quoted again
// on a later run.
func (o *Orchestrator) QuoteTweet(ctx context.Context, query string) (rep Report, err error) {
	r, log := o.begin(domain.KindQuote)
	defer func() { o.finish(log, r, err); rep = *r }()

	if query == "" {
		query = o.cfg.QuoteQuery
	}
	dedupe := o.cfg.DedupeEnabled(domain.KindQuote)
	log = log.With(slog.String("query", query), slog.Bool("dedupe", dedupe))

	me, err := o.social.IdentifySelf(ctx)
	if err != nil {
		return *r, err
	}
	log = log.With(slog.String("user_id", string(me)))

	// With dedupe on, earlier targets are skipped, so look past them.
	limit := o.cfg.QuoteLimit
	if dedupe && limit < quoteDedupeWindow {
		limit = quoteDedupeWindow
	}
	candidates, err := o.social.Search(ctx, query, limit)
	if err != nil {
		return *r, err
	}
	r.Candidates = len(candidates)

	var target *domain.CandidateItem
	for i := range candidates {
		if dedupe {
			done, err := o.seen(ctx, domain.KindQuote, candidates[i].ID)
			if err != nil {
				return *r, err
			}
			if done {
				r.Skipped++
				recordItem(r.Workflow, outcomeSkipped)
				continue
			}
		}
		target = &candidates[i]
		break
	}
	if target == nil {
		log.Info("nothing to quote")
		return *r, nil
	}
	tlog := log.With(slog.String("target_id", target.ID))

	comment := o.generate(ctx, TextPrompt(o.cfg.QuotePrompt, target.Text))
	if comment == "" {
		r.Failed++
		recordItem(r.Workflow, outcomeEmpty)
		tlog.Error("quote generation failed")
		return *r, nil
	}
	text := Truncate(comment, o.cfg.TextLimit)

	quoteID, werr := o.social.Quote(ctx, text, target.ID)
	if werr != nil {
		r.Failed++
		recordItem(r.Workflow, outcomeFailed)
		tlog.Error("quote failed", slog.Any("error", werr))
		return *r, nil
	}

	r.Acted++
	r.ActedIDs = append(r.ActedIDs, target.ID)
	recordItem(r.Workflow, outcomeActed)
	tlog.Info("quoted tweet", slog.String("quote_id", quoteID), slog.String("text", text))
	if dedupe {
		o.record(ctx, tlog, r, domain.KindQuote, target.ID)
	}
	return *r, nil
}

// LikeSearchResults likes up to the configured number of search results for
// query. Without like dedupe it relies on the platform treating a repeated
// like as a no-op.
func (o *Orchestrator) LikeSearchResults(ctx context.Context, query string) (rep Report, err error) {
	r, log := o.begin(domain.KindLike)
	defer func() { o.finish(log, r, err); rep = *r }()

	if query == "" {
		query = o.cfg.LikeQuery
	}
	dedupe := o.cfg.DedupeEnabled(domain.KindLike)
	log = log.With(slog.String("query", query), slog.Bool("dedupe", dedupe))

	me, err := o.social.IdentifySelf(ctx)
	if err != nil {
		return *r, err
	}
	log = log.With(slog.String("user_id", string(me)))

	candidates, err := o.social.Search(ctx, query, o.cfg.LikeLimit)
	if err != nil {
		return *r, err
	}
	r.Candidates = len(candidates)

	pace := &pacer{o: o}
	for _, c := range candidates {
		clog := log.With(slog.String("tweet_id", c.ID))
		if dedupe {
			done, err := o.seen(ctx, domain.KindLike, c.ID)
			if err != nil {
				return *r, err
			}
			if done {
				r.Skipped++
				recordItem(r.Workflow, outcomeSkipped)
				continue
			}
		}

		if err := pace.wait(ctx); err != nil {
			return *r, err
		}
		if werr := o.social.Like(ctx, me, c.ID); werr != nil {
			r.Failed++
			recordItem(r.Workflow, outcomeFailed)
			clog.Error("like failed", slog.Any("error", werr))
			continue
		}

		r.Acted++
		r.ActedIDs = append(r.ActedIDs, c.ID)
		recordItem(r.Workflow, outcomeActed)
		clog.Info("liked tweet")
		if dedupe {
			o.record(ctx, clog, r, domain.KindLike, c.ID)
		}
		pace.succeeded()
	}
	return *r, nil
}
