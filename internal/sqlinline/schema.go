package sqlinline

const QEnsureSchema = `--sql dae31d53-cef0-45a6-9452-5b8c4acd4dfc
create table if not exists registrations (
  seq        bigserial   not null,
  code       text        primary key,
  identity   text        not null,
  created_at timestamptz not null default now()
);
create unique index if not exists registrations_identity_lower_idx on registrations (lower(identity));

create table if not exists display_names (
  seq          bigserial   not null,
  identity     text        primary key,
  display_name text        not null,
  updated_at   timestamptz not null default now()
);

create table if not exists donations (
  seq              bigserial   not null,
  id               text        primary key,
  external_id      text        not null default '',
  platform         text        not null,
  donor            text        not null,
  amount           numeric     not null,
  message          text        not null default '',
  matched_identity text        not null default '',
  match_method     text        not null,
  received_at      timestamptz not null
);
create index if not exists donations_platform_seq_idx on donations (platform, seq desc);
create index if not exists donations_received_at_idx on donations (received_at desc);

create table if not exists leaderboard (
  identity    text        primary key,
  total       numeric     not null default 0,
  donations   bigint      not null default 0,
  last_at     timestamptz not null
);
`
