package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/mrlokans/libris/internal/catalog"
	"github.com/mrlokans/libris/internal/entities"
)

// BooksCommand browses the catalog and, for admins, edits it:
//
//	books list [-type T] [-category C] [-genre G] [-q TEXT]
//	books show ID
//	books add -title T -author A -type T [-price P] ...
//	books update ID [-title T] ...
//	books delete ID
type BooksCommand struct {
	env    *Env
	Action string
	ID     string

	filter catalog.Filter
	draft  entities.Book
	set    map[string]bool
}

func NewBooksCommand(env *Env) *BooksCommand {
	return &BooksCommand{env: env}
}

func (cmd *BooksCommand) ParseFlags(args []string) error {
	cmd.Action, args = firstArg(args)
	if cmd.Action == "" {
		cmd.Action = "list"
	}

	fs := flag.NewFlagSet("books "+cmd.Action, flag.ExitOnError)
	switch cmd.Action {
	case "list":
		var bookType string
		fs.StringVar(&bookType, "type", "", "Only books of this type (free, paid, physical)")
		fs.StringVar(&cmd.filter.Category, "category", "", "Only books in this category")
		fs.StringVar(&cmd.filter.Genre, "genre", "", "Only books in this genre")
		fs.StringVar(&cmd.filter.Query, "q", "", "Match title or author")
		fs.Usage = usage(fs, "books list [options]", "List the catalog, newest first.")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cmd.filter.Type = entities.BookType(bookType)
		return nil

	case "show", "delete":
		cmd.ID, args = firstArg(args)
		fs.Usage = usage(fs, "books "+cmd.Action+" ID", "")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if cmd.ID == "" {
			fs.Usage()
			return fmt.Errorf("book id is required")
		}
		return nil

	case "add", "update":
		if cmd.Action == "update" {
			cmd.ID, args = firstArg(args)
		}
		price := bookFlags(fs, &cmd.draft)
		fs.Usage = usage(fs, "books "+cmd.Action+" [ID] [options]", "Admin only. Update changes only the given fields.")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cmd.set = make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { cmd.set[f.Name] = true })
		if cmd.set["price"] {
			cmd.draft.Price = price
		}
		if cmd.Action == "update" && cmd.ID == "" {
			fs.Usage()
			return fmt.Errorf("book id is required")
		}
		return nil
	}
	return fmt.Errorf("unknown books action %q (want list, show, add, update or delete)", cmd.Action)
}

// bookFlags binds the editable fields. The returned pointer receives -price.
func bookFlags(fs *flag.FlagSet, b *entities.Book) *float64 {
	price := new(float64)
	fs.StringVar(&b.Title, "title", "", "Title")
	fs.StringVar(&b.Author, "author", "", "Author")
	fs.StringVar(&b.Category, "category", "", "Category: "+strings.Join(entities.Categories, ", "))
	fs.StringVar(&b.Genre, "genre", "", "Genre: "+strings.Join(entities.Genres, ", "))
	fs.StringVar(&b.Cover, "cover", "", "Cover image URL")
	fs.StringVar(&b.Description, "description", "", "Description")
	fs.Func("type", "Type: free, paid or physical", func(v string) error {
		b.Type = entities.BookType(v)
		return nil
	})
	fs.Float64Var(price, "price", 0, "Price (required for paid and physical books)")
	fs.BoolVar(&b.IsAvailable, "available", true, "Whether the book can be borrowed or bought")
	fs.StringVar(&b.PublishedDate, "published", "", "Publication date (YYYY-MM-DD)")
	fs.Func("pages", "Page count", func(v string) error {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return fmt.Errorf("pages must be a number")
		}
		b.Pages = &n
		return nil
	})
	fs.Func("isbn", "ISBN", func(v string) error {
		b.ISBN = &v
		return nil
	})
	fs.Func("chapters", "Comma-separated chapter titles", func(v string) error {
		b.Content = splitList(v)
		return nil
	})
	return price
}

func (cmd *BooksCommand) Run(ctx context.Context) error {
	lib, err := cmd.env.open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	switch cmd.Action {
	case "list":
		if state := lib.Catalog.State(); state.Err != nil && len(state.Books) == 0 {
			return state.Err
		}
		books := lib.Catalog.Filter(cmd.filter)
		for _, b := range books {
			cmd.env.printf("%s  %-40s  %-24s  %s\n", b.ID, truncate(b.Title, 40), truncate(b.Author, 24), priceLabel(b))
		}
		cmd.env.printf("%d book(s)\n", len(books))
		return nil

	case "show":
		b, ok := lib.Catalog.Get(cmd.ID)
		if !ok {
			return catalog.ErrNotFound
		}
		printBook(cmd.env, b)
		return nil

	case "add":
		created, err := lib.AddBook(ctx, &cmd.draft)
		if err != nil {
			return err
		}
		cmd.env.printf("Added %s (%s)\n", created.Title, created.ID)
		return nil

	case "update":
		current, ok := lib.Catalog.Get(cmd.ID)
		if !ok {
			return catalog.ErrNotFound
		}
		updated, err := lib.UpdateBook(ctx, cmd.ID, cmd.merge(current))
		if err != nil {
			return err
		}
		cmd.env.printf("Updated %s (%s)\n", updated.Title, updated.ID)
		return nil

	case "delete":
		if err := lib.DeleteBook(ctx, cmd.ID); err != nil {
			return err
		}
		cmd.env.printf("Deleted %s\n", cmd.ID)
		return nil
	}
	return fmt.Errorf("unknown books action %q", cmd.Action)
}

// merge applies the flags given on the command line to current.
func (cmd *BooksCommand) merge(current entities.Book) *entities.Book {
	d := cmd.draft
	apply := map[string]func(){
		"title":       func() { current.Title = d.Title },
		"author":      func() { current.Author = d.Author },
		"category":    func() { current.Category = d.Category },
		"genre":       func() { current.Genre = d.Genre },
		"cover":       func() { current.Cover = d.Cover },
		"description": func() { current.Description = d.Description },
		"type":        func() { current.Type = d.Type },
		"price":       func() { current.Price = d.Price },
		"available":   func() { current.IsAvailable = d.IsAvailable },
		"published":   func() { current.PublishedDate = d.PublishedDate },
		"pages":       func() { current.Pages = d.Pages },
		"isbn":        func() { current.ISBN = d.ISBN },
		"chapters":    func() { current.Content = d.Content },
	}
	for name := range cmd.set {
		if fn, ok := apply[name]; ok {
			fn()
		}
	}
	if current.Type == entities.BookTypeFree {
		current.Price = nil
	}
	return &current
}

func printBook(env *Env, b entities.Book) {
	env.printf("%s\n", b.Title)
	env.printf("  by %s\n", b.Author)
	env.printf("  id:         %s\n", b.ID)
	env.printf("  category:   %s / %s\n", b.Category, b.Genre)
	env.printf("  type:       %s\n", priceLabel(b))
	env.printf("  rating:     %.1f (%d reviews)\n", b.Rating, b.Reviews)
	if b.PublishedDate != "" {
		env.printf("  published:  %s\n", b.PublishedDate)
	}
	if b.Pages != nil {
		env.printf("  pages:      %d\n", *b.Pages)
	}
	if b.ISBN != nil {
		env.printf("  isbn:       %s\n", *b.ISBN)
	}
	if !b.IsAvailable {
		env.printf("  currently unavailable\n")
	}
	for i, chapter := range b.Content {
		env.printf("  %2d. %s\n", i+1, chapter)
	}
	if b.Description != "" {
		env.printf("\n%s\n", b.Description)
	}
}

func priceLabel(b entities.Book) string {
	if b.Price == nil || b.Type == entities.BookTypeFree {
		return string(b.Type)
	}
	return fmt.Sprintf("%s $%.2f", b.Type, *b.Price)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
